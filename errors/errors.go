package errors

import (
	"fmt"
	"strings"
)

const (
	stBadParameterErrorMsg         = "Bad value for parameter '%s': '%v'"
	stBadParameterErrorExpectedMsg = "Bad value for parameter '%s': '%v' (expected: '%v')"
	stNotFoundErrorMsg             = "%s with id '%s' not found"
	stValidationErrorMsg           = "Invalid %s: %s"
)

type simpleError struct {
	message string
}

func (err simpleError) Error() string {
	return err.message
}

// NewInternalError returns the custom defined error of type InternalError.
func NewInternalError(msg string) InternalError {
	return InternalError{simpleError{msg}}
}

// InternalError means that the operation failed for some internal, unexpected
// reason. It signals a programming invariant violation (for example malformed
// rule data that bypassed validation) and aborts the whole dispatch cycle.
type InternalError struct {
	simpleError
}

// NewConversionError returns the custom defined error of type ConversionError.
func NewConversionError(msg string) ConversionError {
	return ConversionError{simpleError{msg}}
}

// ConversionError means something went wrong converting between different
// representations, e.g. coercing a perform value into an attribute's kind.
type ConversionError struct {
	simpleError
}

// BadParameterError means that a parameter was not as required.
type BadParameterError struct {
	parameter        string
	value            interface{}
	expectedValue    interface{}
	hasExpectedValue bool
}

// Error implements the error interface.
func (err BadParameterError) Error() string {
	if err.hasExpectedValue {
		return fmt.Sprintf(stBadParameterErrorExpectedMsg, err.parameter, err.value, err.expectedValue)
	}
	return fmt.Sprintf(stBadParameterErrorMsg, err.parameter, err.value)
}

// Expected sets the optional expectedValue parameter on the BadParameterError.
func (err BadParameterError) Expected(expected interface{}) BadParameterError {
	err.expectedValue = expected
	err.hasExpectedValue = true
	return err
}

// NewBadParameterError returns the custom defined error of type BadParameterError.
func NewBadParameterError(param string, actual interface{}) BadParameterError {
	return BadParameterError{parameter: param, value: actual}
}

// NotFoundError means the object specified for the operation does not exist.
// During rule evaluation a NotFoundError coming out of an attribute,
// recipient or calendar lookup is non-fatal: the predicate fails or the
// recipient is skipped.
type NotFoundError struct {
	entity string
	ID     string
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf(stNotFoundErrorMsg, err.entity, err.ID)
}

// NewNotFoundError returns the custom defined error of type NotFoundError.
func NewNotFoundError(entity string, id string) NotFoundError {
	return NotFoundError{entity: entity, ID: id}
}

// ValidationError means a rule is malformed at save time, e.g. a notification
// perform entry without a resolvable recipient. Rules failing validation are
// rejected before persistence and never reach the dispatcher.
type ValidationError struct {
	subject string
	reason  string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf(stValidationErrorMsg, err.subject, err.reason)
}

// NewValidationError returns the custom defined error of type ValidationError.
func NewValidationError(subject string, reason string) ValidationError {
	return ValidationError{subject: subject, reason: reason}
}

// ExecutionError collects the failures of the individual perform actions of
// one rule firing. The executor attempts all actions of a perform and reports
// the collected failures to the caller instead of aborting on the first one.
type ExecutionError struct {
	failures []error
}

// NewExecutionError returns the custom defined error of type ExecutionError.
func NewExecutionError(failures []error) ExecutionError {
	return ExecutionError{failures: failures}
}

func (err ExecutionError) Error() string {
	msgs := make([]string, 0, len(err.failures))
	for _, f := range err.failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%d perform action(s) failed: %s", len(err.failures), strings.Join(msgs, "; "))
}

// Failures returns the individual action failures.
func (err ExecutionError) Failures() []error {
	return err.failures
}
