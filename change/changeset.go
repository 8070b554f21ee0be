package change

import (
	"reflect"
	"sort"
)

// Set is a set of changes to an entity.
type Set []Change

// Detector defines funcs for getting a changeset from two instances of an
// entity. This interface has to be implemented by all entities that should
// trigger rule runs.
type Detector interface {
	ChangeSet(older Detector) (Set, error)
}

// Change defines one changed value in an entity. It holds the attribute name
// as the key and old and new values.
type Change struct {
	AttributeName string
	NewValue      interface{}
	OldValue      interface{}
}

// Contains returns true if the set holds a change for the given attribute.
func (s Set) Contains(attributeName string) bool {
	for _, c := range s {
		if c.AttributeName == attributeName {
			return true
		}
	}
	return false
}

// Find returns the change for the given attribute or nil.
func (s Set) Find(attributeName string) *Change {
	for i := range s {
		if s[i].AttributeName == attributeName {
			return &s[i]
		}
	}
	return nil
}

// Diff compares two attribute maps and returns the changes from older to
// newer. A nil older map describes a freshly created entity; every attribute
// of the new map is reported with a nil old value then. The resulting set is
// ordered by attribute name so repeated diffs of the same snapshots are
// deterministic.
func Diff(older, newer map[string]interface{}) Set {
	names := map[string]struct{}{}
	for name := range older {
		names[name] = struct{}{}
	}
	for name := range newer {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var changes Set
	for _, name := range sorted {
		oldValue, inOld := older[name]
		newValue, inNew := newer[name]
		if inOld && inNew && reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		changes = append(changes, Change{
			AttributeName: name,
			NewValue:      newValue,
			OldValue:      oldValue,
		})
	}
	return changes
}
