package notification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/condition"
	"github.com/webvolta/zammad/securemailing"
	"github.com/webvolta/zammad/ticket"
)

// Message is one outbound notification request handed to the delivery
// collaborator. Recipients are joined into a single comma-separated To list
// for email-style delivery, not fanned out individually.
type Message struct {
	// DedupKey is stable across delivery retries of the same rule firing:
	// rule id + record id + commit id. The delivery collaborator uses it so
	// repeated attempts don't double-fire side effects.
	DedupKey       string
	From           string
	To             string
	Subject        string
	Body           string
	ContentType    string
	Internal       bool
	Security       securemailing.Spec
	SecurityResult securemailing.Result
}

// Mailer is the outbound message capability. Delivery is fire-and-forget
// relative to the triggering commit; retries on transient failure are the
// responsibility of the implementation, keyed by the message's DedupKey.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// JoinAddresses builds the comma-separated To list from resolved recipients.
func JoinAddresses(addresses []string) string {
	return strings.Join(addresses, ", ")
}

var placeholderPattern = regexp.MustCompile(`#\{\s*([a-z_]+\.[a-zA-Z0-9_.]+)\s*\}`)

// Render substitutes `#{entity.attribute}` placeholders in a subject or body
// template with values from the record graph. Re-rendering the same commit
// snapshot is deterministic; placeholders that do not resolve render as the
// empty string.
func Render(template string, tkt *ticket.Ticket, evalCtx change.Context) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := condition.Resolve(path, tkt, evalCtx)
		if !ok || value == nil {
			return ""
		}
		return stringify(value)
	})
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RecordingMailer collects messages instead of delivering them. It serves
// tests and dry runs.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []Message
}

// Ensure RecordingMailer implements the Mailer interface
var _ Mailer = (*RecordingMailer)(nil)

// Send implements Mailer.
func (m *RecordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *RecordingMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
