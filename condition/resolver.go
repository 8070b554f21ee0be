package condition

import (
	"strings"

	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/ticket"
)

// attribute path entities
const (
	entityTicket        = "ticket"
	entityArticle       = "article"
	entityExecutionTime = "execution_time"
)

// virtual ticket attributes served from commit metadata
const (
	attrAction = "action"
	attrID     = "id"
	attrNumber = "number"
)

// Resolve resolves a dot-separated attribute path ("ticket.state_id",
// "article.body_as_html") against the record graph of the evaluation. The
// second return value is false if the entity or attribute is unknown;
// predicates treat that as "never matches" rather than raising.
func Resolve(path string, tkt *ticket.Ticket, evalCtx change.Context) (interface{}, bool) {
	entity, attr, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	switch entity {
	case entityTicket:
		return resolveTicket(attr, tkt, evalCtx)
	case entityArticle:
		return resolveArticle(attr, tkt)
	}
	return nil, false
}

func resolveTicket(attr string, tkt *ticket.Ticket, evalCtx change.Context) (interface{}, bool) {
	switch attr {
	case attrAction:
		// evaluated against transaction metadata, not record state
		return string(evalCtx.Kind), true
	case attrID:
		if tkt == nil {
			return nil, false
		}
		return tkt.ID, true
	case attrNumber:
		if tkt == nil {
			return nil, false
		}
		return tkt.Number, true
	}
	if tkt == nil {
		return nil, false
	}
	return tkt.Attribute(attr)
}

func resolveArticle(attr string, tkt *ticket.Ticket) (interface{}, bool) {
	if tkt == nil {
		return nil, false
	}
	article := tkt.LastArticle()
	if article == nil {
		return nil, false
	}
	switch attr {
	case "from":
		return article.From, true
	case "to":
		return article.To, true
	case "reply_to":
		return article.ReplyTo, true
	case "subject":
		return article.Subject, true
	case "body":
		return article.Body, true
	case "body_as_html":
		return article.BodyAsHTML(), true
	case "internal":
		return article.Internal, true
	case "type":
		return article.Type, true
	case "sender":
		return article.Sender, true
	}
	return nil, false
}
