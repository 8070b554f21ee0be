package trigger

// Operator is the comparison applied by one condition predicate.
type Operator string

// the operators the condition evaluator understands
const (
	OperatorIs                 Operator = "is"
	OperatorIsNot              Operator = "is not"
	OperatorContains           Operator = "contains"
	OperatorContainsNot        Operator = "contains not"
	OperatorIsInWorkingTime    Operator = "is in working time"
	OperatorIsNotInWorkingTime Operator = "is not in working time"
)

// Valid reports whether the operator is one of the known values.
func (o Operator) Valid() bool {
	switch o {
	case OperatorIs, OperatorIsNot, OperatorContains, OperatorContainsNot,
		OperatorIsInWorkingTime, OperatorIsNotInWorkingTime:
		return true
	}
	return false
}

// PreCondition substitutes a computed value into the effective comparison
// value of a predicate at evaluation time, not at save time.
type PreCondition string

// the pre-conditions the condition evaluator understands
const (
	// PreConditionSpecific compares against the predicate's stored value;
	// it is the default when no pre-condition is given.
	PreConditionSpecific PreCondition = "specific"
	// PreConditionNotSet compares against the empty value.
	PreConditionNotSet PreCondition = "not_set"
	// PreConditionCurrentUserID compares against the acting user's id.
	PreConditionCurrentUserID PreCondition = "current_user.id"
)

// Valid reports whether the pre-condition is one of the known values. The
// empty string means no pre-condition and is valid.
func (p PreCondition) Valid() bool {
	switch p {
	case "", PreConditionSpecific, PreConditionNotSet, PreConditionCurrentUserID:
		return true
	}
	return false
}

// Predicate is one condition entry testing an attribute against an operator
// and a comparison value. Value may be a scalar or a list; a list means
// "member of" for the is/is not operators.
type Predicate struct {
	Operator        Operator     `json:"operator"`
	Value           interface{}  `json:"value"`
	PreCondition    PreCondition `json:"pre_condition,omitempty"`
	ValueCompletion string       `json:"value_completion,omitempty"`
}

// Condition is the condition tree of a rule: a conjunction over attribute
// paths. Every predicate must match for the rule to fire; an empty condition
// matches always.
type Condition map[string]Predicate
