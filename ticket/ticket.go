package ticket

import (
	"reflect"

	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/errors"
)

// names of the ticket attributes the engine can address via "ticket.<name>"
const (
	AttrTitle       = "title"
	AttrStateID     = "state_id"
	AttrPriorityID  = "priority_id"
	AttrGroupID     = "group_id"
	AttrCustomerID  = "customer_id"
	AttrOwnerID     = "owner_id"
	AttrCreatedByID = "created_by_id"
	AttrUpdatedByID = "updated_by_id"
	AttrPendingTime = "pending_time"
	AttrTags        = "tags"
)

// Ticket is the record the trigger engine evaluates and mutates. Attribute
// values live in the Fields map keyed by the Attr* constants; the attached
// articles form the conversation on the ticket.
type Ticket struct {
	ID       uuid.UUID
	Number   int
	Fields   map[string]interface{}
	Articles []*Article
}

// New creates a ticket with the given id and an empty attribute map.
func New(id uuid.UUID) *Ticket {
	return &Ticket{ID: id, Fields: map[string]interface{}{}}
}

// Attribute returns the value of the given attribute and whether it is set.
func (t *Ticket) Attribute(name string) (interface{}, bool) {
	if t.Fields == nil {
		return nil, false
	}
	value, ok := t.Fields[name]
	return value, ok
}

// SetAttribute validates and writes an attribute value. Unknown attributes
// and values outside the attribute's kind yield an error instead of a
// partial silent write.
func (t *Ticket) SetAttribute(name string, value interface{}) error {
	def, ok := LookupFieldDefinition(name)
	if !ok {
		return errors.NewBadParameterError("attribute", name)
	}
	converted, err := def.ConvertToModel(value)
	if err != nil {
		return errors.NewConversionError(errs.Wrapf(err, "failed to convert value for attribute '%s'", name).Error())
	}
	if t.Fields == nil {
		t.Fields = map[string]interface{}{}
	}
	t.Fields[name] = converted
	return nil
}

// ChangeSet derives a changeset between this ticket and an older version of
// it. A nil older version describes the creation of the ticket and reports
// every attribute.
func (t *Ticket) ChangeSet(older change.Detector) (change.Set, error) {
	if older == nil {
		return change.Diff(nil, t.Fields), nil
	}
	olderTicket, ok := older.(*Ticket)
	if !ok {
		return nil, errs.New("other entity is not a Ticket: " + reflect.TypeOf(older).String())
	}
	if !uuid.Equal(t.ID, olderTicket.ID) {
		return nil, errs.New("other ticket has not the same ID: " + olderTicket.ID.String())
	}
	return change.Diff(olderTicket.Fields, t.Fields), nil
}

// Ensure Ticket implements the change.Detector interface
var _ change.Detector = (*Ticket)(nil)

// Copy returns a deep copy of the ticket, including articles. The dispatcher
// snapshots tickets this way before handing them to the executor.
func (t *Ticket) Copy() *Ticket {
	cp := &Ticket{ID: t.ID, Number: t.Number, Fields: map[string]interface{}{}}
	for k, v := range t.Fields {
		if tags, ok := v.([]string); ok {
			copied := make([]string, len(tags))
			copy(copied, tags)
			cp.Fields[k] = copied
			continue
		}
		cp.Fields[k] = v
	}
	cp.Articles = make([]*Article, 0, len(t.Articles))
	for _, a := range t.Articles {
		ac := a.Copy()
		cp.Articles = append(cp.Articles, ac)
	}
	return cp
}

// LastArticle returns the most recent article on the ticket or nil.
func (t *Ticket) LastArticle() *Article {
	if len(t.Articles) == 0 {
		return nil
	}
	return t.Articles[len(t.Articles)-1]
}

// AddArticle appends an article to the ticket's conversation.
func (t *Ticket) AddArticle(a *Article) {
	a.TicketID = t.ID
	t.Articles = append(t.Articles, a)
}

// Tags returns the ticket's tags, never nil.
func (t *Ticket) Tags() []string {
	tags, _ := t.Fields[AttrTags].([]string)
	return tags
}

// AddTags adds the given tags, keeping existing order and skipping ones the
// ticket already carries.
func (t *Ticket) AddTags(tags []string) {
	current := t.Tags()
	for _, tag := range tags {
		exists := false
		for _, c := range current {
			if c == tag {
				exists = true
				break
			}
		}
		if !exists {
			current = append(current, tag)
		}
	}
	if t.Fields == nil {
		t.Fields = map[string]interface{}{}
	}
	t.Fields[AttrTags] = current
}

// RemoveTags removes the given tags if present.
func (t *Ticket) RemoveTags(tags []string) {
	current := t.Tags()
	kept := make([]string, 0, len(current))
	for _, c := range current {
		remove := false
		for _, tag := range tags {
			if c == tag {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, c)
		}
	}
	if t.Fields == nil {
		t.Fields = map[string]interface{}{}
	}
	t.Fields[AttrTags] = kept
}
