package user

import (
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/convert"
	"github.com/webvolta/zammad/errors"
)

// User describes a person known to the system: an agent or a customer.
// Only the attributes the trigger engine consumes are modelled here; the
// surrounding application owns the full account data.
type User struct {
	ID     uuid.UUID
	Login  string
	Email  string
	Active bool
}

// Ensure User implements the Equaler interface
var _ convert.Equaler = User{}
var _ convert.Equaler = (*User)(nil)

// Equal returns true if two User objects are equal; otherwise false is returned.
func (u User) Equal(other convert.Equaler) bool {
	o, ok := other.(User)
	if !ok {
		return false
	}
	return uuid.Equal(u.ID, o.ID) && u.Login == o.Login && u.Email == o.Email && u.Active == o.Active
}

// Registry is the user lookup capability the engine consumes. Implementations
// live in the surrounding application; a failed lookup returns a
// errors.NotFoundError and degrades to "recipient unresolved", never a hang.
type Registry interface {
	Lookup(id uuid.UUID) (*User, error)
}

// InMemoryRegistry is a Registry backed by a plain map. It serves tests and
// small installations.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// Ensure InMemoryRegistry implements the Registry interface
var _ Registry = (*InMemoryRegistry)(nil)

// NewInMemoryRegistry creates an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{users: map[uuid.UUID]User{}}
}

// Add puts the given user into the registry, replacing a previous entry with
// the same id.
func (r *InMemoryRegistry) Add(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// Lookup implements Registry.
func (r *InMemoryRegistry) Lookup(id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user", id.String())
	}
	return &u, nil
}

// EqualAddress reports whether two email addresses denote the same recipient.
// Addresses are compared case-insensitively; see the recipient package for
// where this matters.
func EqualAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
