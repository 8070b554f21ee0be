package trigger

import (
	"bytes"
	"encoding/json"
	"strings"

	errs "github.com/pkg/errors"

	"github.com/webvolta/zammad/securemailing"
)

// ActionKind discriminates the members of the Action union.
type ActionKind string

// the action kinds a perform entry can carry
const (
	ActionKindAttribute    ActionKind = "attribute"
	ActionKindDate         ActionKind = "date"
	ActionKindTags         ActionKind = "tags"
	ActionKindNotification ActionKind = "notification"
	ActionKindUnknown      ActionKind = "unknown"
)

// Action is one member of the perform union. The concrete type depends on the
// entry's target path; free-form admin input that matches no known kind
// becomes an UnknownAction and fails validation instead of silently matching.
type Action interface {
	Kind() ActionKind
}

// AttributeAction writes a literal value to the target attribute.
type AttributeAction struct {
	Value interface{} `json:"value"`
}

// Kind implements Action.
func (a AttributeAction) Kind() ActionKind { return ActionKindAttribute }

// DateOperator selects how a date action computes its value.
type DateOperator string

// date operators
const (
	// DateOperatorStatic uses the action's value literally.
	DateOperatorStatic DateOperator = "static"
	// DateOperatorRelative computes "now + value range-units" at execution
	// time, not at rule-save time.
	DateOperatorRelative DateOperator = "relative"
)

// DateRange is the unit of a relative date action.
type DateRange string

// relative date units
const (
	RangeMinute DateRange = "minute"
	RangeHour   DateRange = "hour"
	RangeDay    DateRange = "day"
	RangeWeek   DateRange = "week"
	RangeMonth  DateRange = "month"
	RangeYear   DateRange = "year"
)

// Valid reports whether the range is one of the known units.
func (r DateRange) Valid() bool {
	switch r {
	case RangeMinute, RangeHour, RangeDay, RangeWeek, RangeMonth, RangeYear:
		return true
	}
	return false
}

// DateAction writes an instant to the target attribute, either literally or
// relative to the execution time (e.g. a pending time).
type DateAction struct {
	Operator DateOperator `json:"operator"`
	Value    string       `json:"value"`
	Range    DateRange    `json:"range,omitempty"`
}

// Kind implements Action.
func (a DateAction) Kind() ActionKind { return ActionKindDate }

// TagOperator selects whether a tags action adds or removes tags.
type TagOperator string

// tag operators
const (
	TagOperatorAdd    TagOperator = "add"
	TagOperatorRemove TagOperator = "remove"
)

// TagsAction adds or removes the comma-separated tags in Value.
type TagsAction struct {
	Operator TagOperator `json:"operator"`
	Value    string      `json:"value"`
}

// Kind implements Action.
func (a TagsAction) Kind() ActionKind { return ActionKindTags }

// Tags returns the individual tags of the action's value.
func (a TagsAction) Tags() []string {
	parts := strings.Split(a.Value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// NotificationAction dispatches an outbound notification to the resolved
// recipients, rendering subject and body templates against the ticket.
type NotificationAction struct {
	Recipient  RecipientSpec        `json:"recipient"`
	Subject    string               `json:"subject"`
	Body       string               `json:"body"`
	Internal   bool                 `json:"internal,omitempty"`
	Sign       securemailing.Policy `json:"sign,omitempty"`
	Encryption securemailing.Policy `json:"encryption,omitempty"`
}

// Kind implements Action.
func (a NotificationAction) Kind() ActionKind { return ActionKindNotification }

// SecuritySpec returns the action's sign/encryption policies.
func (a NotificationAction) SecuritySpec() securemailing.Spec {
	return securemailing.Spec{Sign: a.Sign, Encryption: a.Encryption}
}

// UnknownAction preserves a perform entry whose target path matches no known
// action kind. It exists so validation can reject the rule with a precise
// message.
type UnknownAction struct {
	Raw json.RawMessage
}

// Kind implements Action.
func (a UnknownAction) Kind() ActionKind { return ActionKindUnknown }

// MarshalJSON implements json.Marshaler.
func (a UnknownAction) MarshalJSON() ([]byte, error) {
	if a.Raw == nil {
		return []byte("null"), nil
	}
	return a.Raw, nil
}

// Entry is one perform entry: a target path and its action.
type Entry struct {
	Path   string
	Action Action
}

// Perform is the action list of a rule. It preserves declaration order
// because later actions may depend on earlier attribute writes, e.g. a state
// change before a notification referencing the new state.
type Perform []Entry

// Find returns the first entry for the given path or nil.
func (p Perform) Find(path string) *Entry {
	for i := range p {
		if p[i].Path == path {
			return &p[i]
		}
	}
	return nil
}

// notification target paths
const (
	PathNotificationEmail = "notification.email"
	pathTicketTags        = "ticket.tags"
	ticketPathPrefix      = "ticket."
)

// UnmarshalJSON implements json.Unmarshaler. The incoming JSON object's key
// order is the declaration order of the actions and is preserved.
func (p *Perform) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return errs.Wrap(err, "failed to parse perform")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errs.New("perform must be a JSON object")
	}
	var entries Perform
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errs.Wrap(err, "failed to parse perform path")
		}
		path, ok := keyTok.(string)
		if !ok {
			return errs.New("perform path must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return errs.Wrapf(err, "failed to parse perform entry '%s'", path)
		}
		action, err := parseAction(path, raw)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, Action: action})
	}
	*p = entries
	return nil
}

// MarshalJSON implements json.Marshaler, writing the entries back as a JSON
// object in declaration order.
func (p Perform) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Path)
		if err != nil {
			return nil, errs.WithStack(err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(entry.Action)
		if err != nil {
			return nil, errs.Wrapf(err, "failed to marshal perform entry '%s'", entry.Path)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// parseAction turns a raw perform entry into its typed action based on the
// target path.
func parseAction(path string, raw json.RawMessage) (Action, error) {
	switch {
	case path == PathNotificationEmail:
		var action NotificationAction
		if err := json.Unmarshal(raw, &action); err != nil {
			return nil, errs.Wrapf(err, "failed to parse notification action '%s'", path)
		}
		return action, nil
	case path == pathTicketTags:
		var action TagsAction
		if err := json.Unmarshal(raw, &action); err != nil {
			return nil, errs.Wrapf(err, "failed to parse tags action '%s'", path)
		}
		return action, nil
	case strings.HasPrefix(path, ticketPathPrefix):
		// probe for the date action shape first
		var probe struct {
			Operator string `json:"operator"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, errs.Wrapf(err, "failed to parse action '%s'", path)
		}
		if probe.Operator == string(DateOperatorStatic) || probe.Operator == string(DateOperatorRelative) {
			var action DateAction
			if err := json.Unmarshal(raw, &action); err != nil {
				return nil, errs.Wrapf(err, "failed to parse date action '%s'", path)
			}
			return action, nil
		}
		var action AttributeAction
		if err := json.Unmarshal(raw, &action); err != nil {
			return nil, errs.Wrapf(err, "failed to parse attribute action '%s'", path)
		}
		return action, nil
	}
	return UnknownAction{Raw: raw}, nil
}

// RecipientSpec is the recipient specification of a notification action:
// either a single keyword/user reference or a list mixing both. The scalar
// and list forms round-trip through JSON unchanged so callers can specify
// expected arity.
type RecipientSpec struct {
	entries []string
	scalar  bool
}

// NewRecipientSpec creates a list-form spec.
func NewRecipientSpec(entries ...string) RecipientSpec {
	return RecipientSpec{entries: entries}
}

// NewScalarRecipientSpec creates a single-string spec.
func NewScalarRecipientSpec(entry string) RecipientSpec {
	return RecipientSpec{entries: []string{entry}, scalar: true}
}

// Entries returns the spec's entries in declaration order.
func (s RecipientSpec) Entries() []string {
	return s.entries
}

// Scalar reports whether the spec was given as a single string rather than a
// list.
func (s RecipientSpec) Scalar() bool {
	return s.scalar
}

// IsEmpty reports whether the spec resolves to no entries at all.
func (s RecipientSpec) IsEmpty() bool {
	for _, e := range s.entries {
		if strings.TrimSpace(e) != "" {
			return false
		}
	}
	return true
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RecipientSpec) UnmarshalJSON(data []byte) error {
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		*s = RecipientSpec{entries: []string{scalar}, scalar: true}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errs.Wrap(err, "recipient must be a string or a list of strings")
	}
	*s = RecipientSpec{entries: list}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s RecipientSpec) MarshalJSON() ([]byte, error) {
	if s.scalar {
		if len(s.entries) == 0 {
			return json.Marshal("")
		}
		return json.Marshal(s.entries[0])
	}
	if s.entries == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s.entries)
}
