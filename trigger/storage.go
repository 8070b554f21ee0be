package trigger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sort"
	"sync"

	"github.com/webvolta/zammad/gormsupport"
)

// Ensure Condition and Perform implement the sql.Scanner and driver.Valuer
// interfaces so they can live in postgres JSONB columns.
var _ sql.Scanner = (*Condition)(nil)
var _ driver.Valuer = (*Condition)(nil)
var _ sql.Scanner = (*Perform)(nil)
var _ driver.Valuer = (*Perform)(nil)

// Value implements the driver.Valuer interface.
func (c Condition) Value() (driver.Value, error) {
	return gormsupport.JSONBValue(c)
}

// Scan implements the sql.Scanner interface.
func (c *Condition) Scan(src interface{}) error {
	return gormsupport.JSONBScan(src, c)
}

// Value implements the driver.Valuer interface.
func (p Perform) Value() (driver.Value, error) {
	return gormsupport.JSONBValue(p)
}

// Scan implements the sql.Scanner interface.
func (p *Perform) Scan(src interface{}) error {
	return gormsupport.JSONBScan(src, p)
}

// Store is the read-only rule enumeration the dispatcher consumes. Rules are
// returned ordered by priority with a stable tie-break on id.
type Store interface {
	ActiveRules(ctx context.Context) ([]Trigger, error)
}

// SortRules orders rules by priority, breaking ties by id, in place.
func SortRules(rules []Trigger) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}

// InMemoryStore holds rules in a slice. It serves tests and embedded use
// without a database.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules []Trigger
}

// Ensure InMemoryStore implements the Store interface
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add validates the rule and puts it into the store. Invalid rules are
// rejected and never reach the dispatcher.
func (s *InMemoryStore) Add(t Trigger) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, t)
	return nil
}

// ActiveRules implements Store.
func (s *InMemoryStore) ActiveRules(ctx context.Context) ([]Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]Trigger, 0, len(s.rules))
	for _, t := range s.rules {
		if t.Active {
			active = append(active, t)
		}
	}
	SortRules(active)
	return active, nil
}
