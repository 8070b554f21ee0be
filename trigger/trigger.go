package trigger

import (
	"fmt"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/errors"
	"github.com/webvolta/zammad/gormsupport"
	"github.com/webvolta/zammad/ticket"
)

// Trigger is a stored condition/perform rule. The dispatcher evaluates the
// condition against every record changed in a commit and, on a match, applies
// the perform actions. Macros share the same shape; they only differ in who
// invokes them.
type Trigger struct {
	gormsupport.Lifecycle
	ID   uuid.UUID `sql:"type:uuid default uuid_generate_v4()" gorm:"primary_key"`
	Name string
	// Condition is the conjunction of predicates a record change must match.
	Condition Condition `sql:"type:jsonb"`
	// Perform are the actions applied to the matched record, in declaration
	// order.
	Perform Perform `sql:"type:jsonb"`
	// Active rules are the only ones the dispatcher loads.
	Active bool
	// Priority orders rule execution within a commit; ties are broken by id.
	Priority int
	// GroupID optionally scopes the rule to one group's tickets.
	GroupID *uuid.UUID `sql:"type:uuid"`
}

// TableName implements gorm.tabler.
func (t Trigger) TableName() string {
	return "triggers"
}

// condition entity prefixes the evaluator understands
const (
	conditionPrefixTicket        = "ticket."
	conditionPrefixArticle       = "article."
	conditionPrefixExecutionTime = "execution_time."
)

// Validate checks the rule before persistence. A rule failing validation
// never reaches the dispatcher.
func (t Trigger) Validate() error {
	for path, predicate := range t.Condition {
		if !predicate.Operator.Valid() {
			return errors.NewValidationError(fmt.Sprintf("condition %s", path), fmt.Sprintf("unknown operator '%s'", predicate.Operator))
		}
		if !predicate.PreCondition.Valid() {
			return errors.NewValidationError(fmt.Sprintf("condition %s", path), fmt.Sprintf("unknown pre condition '%s'", predicate.PreCondition))
		}
		workingTime := predicate.Operator == OperatorIsInWorkingTime || predicate.Operator == OperatorIsNotInWorkingTime
		executionTime := strings.HasPrefix(path, conditionPrefixExecutionTime)
		if workingTime != executionTime {
			return errors.NewValidationError(fmt.Sprintf("condition %s", path), fmt.Sprintf("operator '%s' does not apply to this attribute", predicate.Operator))
		}
		validPrefix := executionTime ||
			strings.HasPrefix(path, conditionPrefixTicket) ||
			strings.HasPrefix(path, conditionPrefixArticle)
		if !validPrefix {
			return errors.NewValidationError(fmt.Sprintf("condition %s", path), "unknown attribute path")
		}
	}
	for _, entry := range t.Perform {
		if err := validateEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

func validateEntry(entry Entry) error {
	switch action := entry.Action.(type) {
	case NotificationAction:
		if action.Recipient.IsEmpty() {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), "recipient is missing!")
		}
		if !action.Sign.Valid() {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), fmt.Sprintf("unknown sign policy '%s'", action.Sign))
		}
		if !action.Encryption.Valid() {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), fmt.Sprintf("unknown encryption policy '%s'", action.Encryption))
		}
	case TagsAction:
		if action.Operator != TagOperatorAdd && action.Operator != TagOperatorRemove {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), fmt.Sprintf("unknown tag operator '%s'", action.Operator))
		}
		if len(action.Tags()) == 0 {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), "tags are missing!")
		}
	case DateAction:
		if err := validateTicketTarget(entry.Path); err != nil {
			return err
		}
		if action.Operator == DateOperatorRelative && !action.Range.Valid() {
			return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), fmt.Sprintf("unknown range '%s'", action.Range))
		}
	case AttributeAction:
		if err := validateTicketTarget(entry.Path); err != nil {
			return err
		}
	default:
		return errors.NewValidationError(fmt.Sprintf("perform %s", entry.Path), "unsupported action")
	}
	return nil
}

func validateTicketTarget(path string) error {
	if !strings.HasPrefix(path, ticketPathPrefix) {
		return errors.NewValidationError(fmt.Sprintf("perform %s", path), "unknown attribute path")
	}
	attr := strings.TrimPrefix(path, ticketPathPrefix)
	if _, ok := ticket.LookupFieldDefinition(attr); !ok {
		return errors.NewValidationError(fmt.Sprintf("perform %s", path), "unknown attribute")
	}
	return nil
}
