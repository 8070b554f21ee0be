package securemailing

import (
	"fmt"
	"sync"

	"github.com/webvolta/zammad/errors"
)

// Policy controls how a security concern (signing or encryption) is applied
// to an outgoing notification.
type Policy string

// possible policies; the zero value means the concern is not requested
const (
	PolicyNone    Policy = ""
	PolicyNo      Policy = "no"
	PolicyAlways  Policy = "always"
	PolicyDiscard Policy = "discard"
)

// Valid reports whether the policy is one of the known values.
func (p Policy) Valid() bool {
	switch p {
	case PolicyNone, PolicyNo, PolicyAlways, PolicyDiscard:
		return true
	}
	return false
}

// requested reports whether the policy asks for the concern at all.
func (p Policy) requested() bool {
	return p == PolicyAlways || p == PolicyDiscard
}

// Spec is the security configuration of one outgoing notification.
type Spec struct {
	Sign       Policy `json:"sign,omitempty"`
	Encryption Policy `json:"encryption,omitempty"`
}

// Marker records the outcome of one security concern on a produced artifact.
type Marker struct {
	Success bool   `json:"success"`
	Comment string `json:"comment,omitempty"`
}

// Result carries the sign and encryption markers stored on the produced
// article's preferences.
type Result struct {
	Sign       Marker `json:"sign"`
	Encryption Marker `json:"encryption"`
}

// Method is the typed tag selecting a security backend implementation.
type Method string

// MethodSMIME selects the S/MIME backend.
const MethodSMIME Method = "smime"

// Backend implements one secure mailing method. Implementations report
// whether the required key material is available for the parties of a
// message; applying the cryptography itself happens in the delivery
// collaborator.
type Backend interface {
	Method() Method
	CanSign(from string) bool
	CanEncrypt(to []string) bool
}

// Registry is a static set of security backends, populated at process start
// and looked up by method tag.
type Registry struct {
	mu       sync.RWMutex
	backends map[Method]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[Method]Backend{}}
}

// Register adds a backend to the registry. Registering a second backend for
// the same method is a programming error.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[b.Method()]; exists {
		return errors.NewInternalError(fmt.Sprintf("security backend '%s' already registered", b.Method()))
	}
	r.backends[b.Method()] = b
	return nil
}

// Lookup returns the backend registered for the given method.
func (r *Registry) Lookup(m Method) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[m]
	if !ok {
		return nil, errors.NewNotFoundError("security backend", string(m))
	}
	return b, nil
}

// PolicyBlockError reports that a discard policy suppressed an outgoing
// notification because the required key material was unavailable. It is
// informational, not a failure: the caller drops the artifact and carries on.
type PolicyBlockError struct {
	Concern string
	Party   string
}

func (err PolicyBlockError) Error() string {
	return fmt.Sprintf("security policy discarded notification: no %s key material for '%s'", err.Concern, err.Party)
}

// ProcessOutgoing applies the security spec to an outbound message. For an
// `always` policy a missing key yields a failure marker and processing
// continues; for a `discard` policy it yields a PolicyBlockError and the
// caller must suppress the artifact entirely.
func (r *Registry) ProcessOutgoing(m Method, spec Spec, from string, to []string) (Result, error) {
	var result Result
	if !spec.Sign.requested() && !spec.Encryption.requested() {
		return result, nil
	}
	backend, err := r.Lookup(m)
	if err != nil {
		if spec.Sign == PolicyDiscard || spec.Encryption == PolicyDiscard {
			return result, PolicyBlockError{Concern: "any", Party: from}
		}
		result.Sign.Comment = err.Error()
		result.Encryption.Comment = err.Error()
		return result, nil
	}

	if spec.Sign.requested() {
		if backend.CanSign(from) {
			result.Sign.Success = true
		} else {
			if spec.Sign == PolicyDiscard {
				return Result{}, PolicyBlockError{Concern: "signing", Party: from}
			}
			result.Sign.Comment = fmt.Sprintf("no %s signing key material for '%s'", backend.Method(), from)
		}
	}

	if spec.Encryption.requested() {
		if backend.CanEncrypt(to) {
			result.Encryption.Success = true
		} else {
			if spec.Encryption == PolicyDiscard {
				return Result{}, PolicyBlockError{Concern: "encryption", Party: fmt.Sprintf("%v", to)}
			}
			result.Encryption.Comment = fmt.Sprintf("no %s encryption key material for all recipients", backend.Method())
		}
	}

	return result, nil
}
