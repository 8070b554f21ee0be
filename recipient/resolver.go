package recipient

import (
	"strings"

	"github.com/asaskevich/govalidator"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/trigger"
	"github.com/webvolta/zammad/user"
)

// recipient group keywords
const (
	KeywordTicketCustomer    = "ticket_customer"
	KeywordTicketOwner       = "ticket_owner"
	KeywordArticleLastSender = "article_last_sender"

	useridPrefix = "userid_"
)

// Resolver expands recipient specifications into concrete email addresses.
// Addresses belonging to the system itself are never produced: answering a
// system address would loop the trigger's own notifications back in.
type Resolver struct {
	Users user.Registry
	// SystemAddresses are the installation's own email addresses.
	SystemAddresses []string
}

// Resolve expands the spec into a deduplicated address list. First-occurrence
// order is preserved; duplicates are detected by case-insensitive exact
// comparison. Entries that cannot be resolved are skipped and logged, they
// never fail the resolution.
func (r Resolver) Resolve(spec trigger.RecipientSpec, tkt *ticket.Ticket) []string {
	var addresses []string
	for _, entry := range spec.Entries() {
		address, ok := r.resolveEntry(entry, tkt)
		if !ok {
			log.Debug(nil, map[string]interface{}{"recipient": entry}, "recipient not resolvable, skipping")
			continue
		}
		if !govalidator.IsEmail(address) {
			log.Warn(nil, map[string]interface{}{"recipient": entry, "address": address}, "recipient resolved to a malformed address, skipping")
			continue
		}
		if r.isSystemAddress(address) {
			log.Debug(nil, map[string]interface{}{"recipient": entry, "address": address}, "recipient is a system address, skipping")
			continue
		}
		duplicate := false
		for _, existing := range addresses {
			if user.EqualAddress(existing, address) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			addresses = append(addresses, address)
		}
	}
	return addresses
}

func (r Resolver) resolveEntry(entry string, tkt *ticket.Ticket) (string, bool) {
	entry = strings.TrimSpace(entry)
	switch {
	case entry == KeywordTicketCustomer:
		return r.userAttributeAddress(tkt, ticket.AttrCustomerID)
	case entry == KeywordTicketOwner:
		return r.userAttributeAddress(tkt, ticket.AttrOwnerID)
	case entry == KeywordArticleLastSender:
		if tkt == nil {
			return "", false
		}
		article := tkt.LastArticle()
		if article == nil {
			return "", false
		}
		if article.ReplyTo != "" {
			return article.ReplyTo, true
		}
		if article.From != "" {
			return article.From, true
		}
		return "", false
	case strings.HasPrefix(entry, useridPrefix):
		id, err := uuid.FromString(strings.TrimPrefix(entry, useridPrefix))
		if err != nil {
			return "", false
		}
		return r.lookupAddress(id)
	}
	return "", false
}

func (r Resolver) userAttributeAddress(tkt *ticket.Ticket, attr string) (string, bool) {
	if tkt == nil {
		return "", false
	}
	value, ok := tkt.Attribute(attr)
	if !ok {
		return "", false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return "", false
	}
	return r.lookupAddress(id)
}

func (r Resolver) lookupAddress(id uuid.UUID) (string, bool) {
	if r.Users == nil {
		return "", false
	}
	u, err := r.Users.Lookup(id)
	if err != nil || u.Email == "" {
		return "", false
	}
	return u.Email, true
}

func (r Resolver) isSystemAddress(address string) bool {
	for _, system := range r.SystemAddresses {
		if user.EqualAddress(system, address) {
			return true
		}
	}
	return false
}
