package condition

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/calendar"
	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/errors"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/trigger"
)

// Evaluator decides whether a rule's condition matches a record change. The
// calendar capability backs the working time operators; a nil capability
// degrades those predicates to false.
type Evaluator struct {
	Calendars calendar.Capability
}

// Matches evaluates the condition against the ticket and its evaluation
// context. The condition is a conjunction: every predicate must match; an
// empty condition matches always. The returned error is reserved for
// programming invariant violations (an operator that bypassed validation);
// resolution failures never surface here, they fail the predicate.
func (e Evaluator) Matches(cond trigger.Condition, tkt *ticket.Ticket, evalCtx change.Context) (bool, error) {
	paths := make([]string, 0, len(cond))
	for path := range cond {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		matched, err := e.matchPredicate(path, cond[path], tkt, evalCtx)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func (e Evaluator) matchPredicate(path string, predicate trigger.Predicate, tkt *ticket.Ticket, evalCtx change.Context) (bool, error) {
	switch predicate.Operator {
	case trigger.OperatorIsInWorkingTime, trigger.OperatorIsNotInWorkingTime:
		return e.matchWorkingTime(path, predicate, evalCtx)
	}

	comparison, ok := effectiveValue(predicate, evalCtx)
	if !ok {
		return false, nil
	}

	attrValue, found := Resolve(path, tkt, evalCtx)
	if !found {
		log.Debug(nil, map[string]interface{}{"path": path}, "attribute not resolvable, predicate fails")
		return false, nil
	}

	switch predicate.Operator {
	case trigger.OperatorIs:
		return anyEqual(attrValue, comparison), nil
	case trigger.OperatorIsNot:
		return !anyEqual(attrValue, comparison), nil
	case trigger.OperatorContains:
		return contains(attrValue, comparison), nil
	case trigger.OperatorContainsNot:
		return !contains(attrValue, comparison), nil
	}
	return false, errors.NewInternalError(fmt.Sprintf("unknown condition operator '%s' bypassed validation", predicate.Operator))
}

// matchWorkingTime delegates to the calendar capability. The predicate
// requires the calendar id to be resolvable; any lookup failure degrades to
// "predicate false" for both the positive and the negated operator.
func (e Evaluator) matchWorkingTime(path string, predicate trigger.Predicate, evalCtx change.Context) (bool, error) {
	if e.Calendars == nil {
		return false, nil
	}
	calendarID, err := calendarIDFromValue(predicate.Value)
	if err != nil {
		log.Debug(nil, map[string]interface{}{"path": path, "err": err}, "calendar id not resolvable, predicate fails")
		return false, nil
	}
	working, err := e.Calendars.IsWorkingTime(calendarID, evalCtx.Now)
	if err != nil {
		log.Debug(nil, map[string]interface{}{"path": path, "calendar_id": calendarID, "err": err}, "working time lookup failed, predicate fails")
		return false, nil
	}
	if predicate.Operator == trigger.OperatorIsNotInWorkingTime {
		return !working, nil
	}
	return working, nil
}

// effectiveValue applies the predicate's pre-condition: the stored value is
// replaced at evaluation time, e.g. by the acting user's id. The second
// return value is false if the pre-condition cannot be satisfied (no actor),
// which fails the predicate.
func effectiveValue(predicate trigger.Predicate, evalCtx change.Context) (interface{}, bool) {
	switch predicate.PreCondition {
	case trigger.PreConditionCurrentUserID:
		if evalCtx.Actor == nil {
			return nil, false
		}
		return evalCtx.Actor.ID, true
	case trigger.PreConditionNotSet:
		return nil, true
	}
	return predicate.Value, true
}

// anyEqual reports whether the attribute value equals the comparison value;
// a list-valued comparison means "member of".
func anyEqual(attrValue, comparison interface{}) bool {
	for _, candidate := range valueList(comparison) {
		if equalValues(attrValue, candidate) {
			return true
		}
	}
	return false
}

// contains applies substring or list-membership matching depending on the
// attribute type: tag lists match by membership, everything else by
// case-insensitive substring.
func contains(attrValue, comparison interface{}) bool {
	if tags, ok := attrValue.([]string); ok {
		for _, candidate := range valueList(comparison) {
			found := false
			for _, tag := range tags {
				if equalValues(tag, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	haystack := strings.ToLower(stringValue(attrValue))
	for _, candidate := range valueList(comparison) {
		if !strings.Contains(haystack, strings.ToLower(stringValue(candidate))) {
			return false
		}
	}
	return true
}

// valueList normalizes a scalar-or-list comparison value to a list.
func valueList(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case []string:
		out := make([]interface{}, 0, len(list))
		for _, s := range list {
			out = append(out, s)
		}
		return out
	case []uuid.UUID:
		out := make([]interface{}, 0, len(list))
		for _, id := range list {
			out = append(out, id)
		}
		return out
	case []int:
		out := make([]interface{}, 0, len(list))
		for _, i := range list {
			out = append(out, i)
		}
		return out
	}
	return []interface{}{v}
}

// equalValues compares two scalars with consistent coercion: if both sides
// parse as numbers they compare numerically, otherwise by their canonical
// string form.
func equalValues(a, b interface{}) bool {
	as, af, aNum := coerce(a)
	bs, bf, bNum := coerce(b)
	if aNum && bNum {
		return af == bf
	}
	return as == bs
}

func coerce(v interface{}) (string, float64, bool) {
	switch value := v.(type) {
	case nil:
		return "", 0, false
	case string:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return value, f, true
		}
		return value, 0, false
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return value.String(), f, true
		}
		return value.String(), 0, false
	case int:
		return strconv.Itoa(value), float64(value), true
	case int32:
		return strconv.FormatInt(int64(value), 10), float64(value), true
	case int64:
		return strconv.FormatInt(value, 10), float64(value), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), value, true
	case bool:
		return strconv.FormatBool(value), 0, false
	case uuid.UUID:
		return value.String(), 0, false
	case time.Time:
		return value.UTC().Format(time.RFC3339), 0, false
	}
	return fmt.Sprintf("%v", v), 0, false
}

func stringValue(v interface{}) string {
	s, _, _ := coerce(v)
	return s
}

// calendarIDFromValue accepts the uuid of a calendar as uuid or string.
func calendarIDFromValue(v interface{}) (uuid.UUID, error) {
	switch value := v.(type) {
	case uuid.UUID:
		return value, nil
	case string:
		return uuid.FromString(value)
	}
	return uuid.Nil, fmt.Errorf("value %v (%[1]T) is not a calendar id", v)
}
