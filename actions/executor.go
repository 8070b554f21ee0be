package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/errors"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/metric"
	"github.com/webvolta/zammad/notification"
	"github.com/webvolta/zammad/recipient"
	"github.com/webvolta/zammad/securemailing"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/trigger"
	"github.com/webvolta/zammad/user"
)

const ticketPathPrefix = "ticket."

// Executor applies a matched rule's perform actions to a ticket. All
// collaborators are optional for installations that don't use the concern:
// a nil Mailer drops outbound messages, a nil Security registry skips
// sign/encryption processing.
type Executor struct {
	Users           user.Registry
	Mailer          notification.Mailer
	Security        *securemailing.Registry
	SecurityMethod  securemailing.Method
	SenderAddress   string
	SystemAddresses []string
}

// Result describes what one rule firing did to the ticket.
type Result struct {
	// Changes are the attribute writes of this firing. The dispatcher merges
	// them into the commit's changeset so later rules see fresh state.
	Changes change.Set
	// Articles are the outbound articles created by notification actions.
	Articles []*ticket.Article
	// Suppressed lists the paths of actions suppressed by the security
	// policy or the auto-response guard. Suppression is informational, not
	// a failure.
	Suppressed []string
}

// DedupKey builds the stable deduplication key of one rule firing.
func DedupKey(ruleID, ticketID, commitID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", ruleID, ticketID, commitID)
}

// Apply executes the rule's perform actions against the ticket in
// declaration order. Individual action failures are collected and returned
// as one errors.ExecutionError together with the partial result; an
// errors.InternalError signals perform data that bypassed validation and
// must abort the whole dispatch cycle.
func (e Executor) Apply(ctx context.Context, rule trigger.Trigger, tkt *ticket.Ticket, evalCtx change.Context) (Result, error) {
	var result Result
	var failures []error

	for _, entry := range rule.Perform {
		switch action := entry.Action.(type) {
		case trigger.AttributeAction:
			if err := e.applyAttribute(&result, tkt, entry.Path, action.Value); err != nil {
				failures = append(failures, err)
			}
		case trigger.DateAction:
			value, err := e.dateValue(action, evalCtx)
			if err != nil {
				failures = append(failures, errs.Wrapf(err, "perform %s", entry.Path))
				continue
			}
			if err := e.applyAttribute(&result, tkt, entry.Path, value); err != nil {
				failures = append(failures, err)
			}
		case trigger.TagsAction:
			e.applyTags(&result, tkt, action)
		case trigger.NotificationAction:
			if err := e.applyNotification(ctx, &result, rule, tkt, evalCtx, entry.Path, action); err != nil {
				failures = append(failures, err)
			}
		default:
			return result, errors.NewInternalError(fmt.Sprintf("perform %s: unsupported action bypassed validation", entry.Path))
		}
	}

	if len(failures) > 0 {
		return result, errors.NewExecutionError(failures)
	}
	return result, nil
}

func (e Executor) applyAttribute(result *Result, tkt *ticket.Ticket, path string, value interface{}) error {
	attr := strings.TrimPrefix(path, ticketPathPrefix)
	oldValue, _ := tkt.Attribute(attr)
	if err := tkt.SetAttribute(attr, value); err != nil {
		return errs.Wrapf(err, "perform %s", path)
	}
	newValue, _ := tkt.Attribute(attr)
	result.Changes = append(result.Changes, change.Change{
		AttributeName: attr,
		NewValue:      newValue,
		OldValue:      oldValue,
	})
	return nil
}

// dateValue computes the value of a date action. A static operator uses the
// configured value literally; a relative operator computes "now + value
// range-units" at execution time, not at rule-save time.
func (e Executor) dateValue(action trigger.DateAction, evalCtx change.Context) (interface{}, error) {
	if action.Operator == trigger.DateOperatorStatic {
		return action.Value, nil
	}
	amount, err := strconv.Atoi(action.Value)
	if err != nil {
		return nil, errs.Errorf("relative value '%s' is not a number", action.Value)
	}
	now := evalCtx.Now
	switch action.Range {
	case trigger.RangeMinute:
		return now.Add(time.Duration(amount) * time.Minute), nil
	case trigger.RangeHour:
		return now.Add(time.Duration(amount) * time.Hour), nil
	case trigger.RangeDay:
		return now.AddDate(0, 0, amount), nil
	case trigger.RangeWeek:
		return now.AddDate(0, 0, 7*amount), nil
	case trigger.RangeMonth:
		return now.AddDate(0, amount, 0), nil
	case trigger.RangeYear:
		return now.AddDate(amount, 0, 0), nil
	}
	return nil, errs.Errorf("unknown range '%s'", action.Range)
}

func (e Executor) applyTags(result *Result, tkt *ticket.Ticket, action trigger.TagsAction) {
	oldTags := tkt.Tags()
	if action.Operator == trigger.TagOperatorRemove {
		tkt.RemoveTags(action.Tags())
	} else {
		tkt.AddTags(action.Tags())
	}
	result.Changes = append(result.Changes, change.Change{
		AttributeName: ticket.AttrTags,
		NewValue:      tkt.Tags(),
		OldValue:      oldTags,
	})
}

func (e Executor) applyNotification(ctx context.Context, result *Result, rule trigger.Trigger, tkt *ticket.Ticket, evalCtx change.Context, path string, action trigger.NotificationAction) error {
	// articles that forbid auto responses (bounces, mass mail) must not be
	// answered by a trigger
	if last := tkt.LastArticle(); last != nil && !last.SendAutoResponse() {
		log.Debug(ctx, map[string]interface{}{"ticket_id": tkt.ID, "rule_id": rule.ID}, "auto response disallowed by article preferences, notification suppressed")
		metric.ReportNotificationSuppressed()
		result.Suppressed = append(result.Suppressed, path)
		return nil
	}

	dedupKey := DedupKey(rule.ID, tkt.ID, evalCtx.CommitID)
	for _, existing := range tkt.Articles {
		if key, ok := existing.Preference(ticket.PreferenceDedupKey); ok && key == dedupKey {
			log.Debug(ctx, map[string]interface{}{"ticket_id": tkt.ID, "dedup_key": dedupKey}, "notification already delivered for this firing")
			return nil
		}
	}

	resolver := recipient.Resolver{Users: e.Users, SystemAddresses: e.SystemAddresses}
	addresses := resolver.Resolve(action.Recipient, tkt)
	if len(addresses) == 0 {
		log.Info(ctx, map[string]interface{}{"ticket_id": tkt.ID, "rule_id": rule.ID}, "no resolvable recipient, notification skipped")
		return nil
	}

	subject := notification.Render(action.Subject, tkt, evalCtx)
	body := notification.Render(action.Body, tkt, evalCtx)

	var securityResult securemailing.Result
	if e.Security != nil {
		var err error
		securityResult, err = e.Security.ProcessOutgoing(e.SecurityMethod, action.SecuritySpec(), e.SenderAddress, addresses)
		if err != nil {
			if block, ok := err.(securemailing.PolicyBlockError); ok {
				// discard policy: the whole artifact is suppressed, no
				// article, no outbound message
				log.Info(ctx, map[string]interface{}{"ticket_id": tkt.ID, "rule_id": rule.ID, "reason": block.Error()}, "notification discarded by security policy")
				metric.ReportNotificationSuppressed()
				result.Suppressed = append(result.Suppressed, path)
				return nil
			}
			return errs.Wrapf(err, "perform %s", path)
		}
	}

	article := &ticket.Article{
		ID:          uuid.NewV4(),
		Type:        ticket.TypeEmail,
		Sender:      ticket.SenderSystem,
		From:        e.SenderAddress,
		To:          notification.JoinAddresses(addresses),
		Subject:     subject,
		Body:        body,
		ContentType: "text/html",
		Internal:    action.Internal,
	}
	article.SetPreference(ticket.PreferenceDedupKey, dedupKey)
	if e.Security != nil {
		article.SetPreference(ticket.PreferenceSecurity, securityResult)
	}
	tkt.AddArticle(article)
	result.Articles = append(result.Articles, article)

	if e.Mailer != nil {
		msg := notification.Message{
			DedupKey:       dedupKey,
			From:           e.SenderAddress,
			To:             article.To,
			Subject:        subject,
			Body:           body,
			ContentType:    article.ContentType,
			Internal:       action.Internal,
			Security:       action.SecuritySpec(),
			SecurityResult: securityResult,
		}
		if err := e.Mailer.Send(ctx, msg); err != nil {
			// delivery is at-least-once and retried by the collaborator,
			// the created article stays
			log.Warn(ctx, map[string]interface{}{"ticket_id": tkt.ID, "dedup_key": dedupKey, "err": err}, "outbound message handoff failed")
		}
	}
	return nil
}
