package securemailing

import (
	"sync"

	"github.com/webvolta/zammad/user"
)

// CertificateStore is the key material lookup the S/MIME backend consults.
// Implementations live in the surrounding application.
type CertificateStore interface {
	// HasCertificateWithKey reports whether a usable certificate including
	// its private key exists for the given address.
	HasCertificateWithKey(address string) bool
	// HasCertificate reports whether a usable certificate (public part is
	// enough) exists for the given address.
	HasCertificate(address string) bool
}

// SMIMEBackend answers key availability questions for S/MIME secured
// notifications: signing needs the sender's certificate with private key,
// encrypting needs a certificate for every recipient.
type SMIMEBackend struct {
	Certificates CertificateStore
}

// Ensure SMIMEBackend implements the Backend interface
var _ Backend = SMIMEBackend{}

// Method implements Backend.
func (b SMIMEBackend) Method() Method {
	return MethodSMIME
}

// CanSign implements Backend.
func (b SMIMEBackend) CanSign(from string) bool {
	if b.Certificates == nil {
		return false
	}
	return b.Certificates.HasCertificateWithKey(from)
}

// CanEncrypt implements Backend.
func (b SMIMEBackend) CanEncrypt(to []string) bool {
	if b.Certificates == nil || len(to) == 0 {
		return false
	}
	for _, addr := range to {
		if !b.Certificates.HasCertificate(addr) {
			return false
		}
	}
	return true
}

// Certificate is one entry of the in-memory certificate store.
type Certificate struct {
	Email         string
	HasPrivateKey bool
	Expired       bool
}

// InMemoryCertificateStore holds certificates in a slice. It serves tests and
// small installations.
type InMemoryCertificateStore struct {
	mu    sync.RWMutex
	certs []Certificate
}

// Ensure InMemoryCertificateStore implements the CertificateStore interface
var _ CertificateStore = (*InMemoryCertificateStore)(nil)

// NewInMemoryCertificateStore creates an empty certificate store.
func NewInMemoryCertificateStore() *InMemoryCertificateStore {
	return &InMemoryCertificateStore{}
}

// Add puts a certificate into the store.
func (s *InMemoryCertificateStore) Add(c Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs = append(s.certs, c)
}

// HasCertificateWithKey implements CertificateStore. Expired certificates are
// not usable.
func (s *InMemoryCertificateStore) HasCertificateWithKey(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certs {
		if user.EqualAddress(c.Email, address) && c.HasPrivateKey && !c.Expired {
			return true
		}
	}
	return false
}

// HasCertificate implements CertificateStore. Expired certificates are not
// usable.
func (s *InMemoryCertificateStore) HasCertificate(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certs {
		if user.EqualAddress(c.Email, address) && !c.Expired {
			return true
		}
	}
	return false
}
