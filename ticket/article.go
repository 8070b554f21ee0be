package ticket

import (
	"html"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// article sender roles
const (
	SenderAgent    = "Agent"
	SenderCustomer = "Customer"
	SenderSystem   = "System"
)

// article types
const (
	TypeEmail = "email"
	TypeNote  = "note"
)

// well-known article preference keys
const (
	// PreferenceSendAutoResponse suppresses notification triggers for the
	// commit that created the article when set to false (e.g. bounce
	// messages and mass mail).
	PreferenceSendAutoResponse = "send-auto-response"
	// PreferenceDedupKey carries the stable deduplication key of the rule
	// firing that produced the article.
	PreferenceDedupKey = "trigger-dedup-key"
	// PreferenceSecurity carries the sign/encryption result markers of the
	// outgoing processing.
	PreferenceSecurity = "security"
)

// Article is one entry of a ticket's conversation: an inbound or outbound
// email, or an internal note.
type Article struct {
	ID          uuid.UUID
	TicketID    uuid.UUID
	Type        string
	Sender      string
	From        string
	To          string
	ReplyTo     string
	Subject     string
	Body        string
	ContentType string
	Internal    bool
	Preferences map[string]interface{}
}

// Copy returns a deep copy of the article.
func (a *Article) Copy() *Article {
	cp := *a
	cp.Preferences = map[string]interface{}{}
	for k, v := range a.Preferences {
		cp.Preferences[k] = v
	}
	return &cp
}

// Preference returns the value of the given preference key and whether it is
// set.
func (a *Article) Preference(key string) (interface{}, bool) {
	if a.Preferences == nil {
		return nil, false
	}
	v, ok := a.Preferences[key]
	return v, ok
}

// SetPreference writes a preference value.
func (a *Article) SetPreference(key string, value interface{}) {
	if a.Preferences == nil {
		a.Preferences = map[string]interface{}{}
	}
	a.Preferences[key] = value
}

// BodyAsHTML returns the article body as HTML. Plain text bodies are escaped
// and newlines are turned into line breaks; HTML bodies are returned as-is.
func (a *Article) BodyAsHTML() string {
	if strings.Contains(a.ContentType, "text/html") {
		return a.Body
	}
	return strings.ReplaceAll(html.EscapeString(a.Body), "\n", "<br>")
}

// SendAutoResponse reports whether auto responses (trigger notifications) are
// allowed in reaction to this article. Unset means allowed.
func (a *Article) SendAutoResponse() bool {
	v, ok := a.Preference(PreferenceSendAutoResponse)
	if !ok {
		return true
	}
	allowed, ok := v.(bool)
	if !ok {
		return true
	}
	return allowed
}
