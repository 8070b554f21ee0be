package dispatcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"

	"github.com/webvolta/zammad/actions"
	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/condition"
	"github.com/webvolta/zammad/dispatcher"
	"github.com/webvolta/zammad/notification"
	"github.com/webvolta/zammad/resource"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/trigger"
	"github.com/webvolta/zammad/user"
)

const senderAddress = "zammad@example.com"

// a Wednesday at noon UTC
var commitTime = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

type engine struct {
	store      *trigger.InMemoryStore
	dispatcher *dispatcher.Dispatcher
	mailer     *notification.RecordingMailer
	customer   user.User
	agent      user.User
}

func newEngine(t *testing.T) *engine {
	customer := user.User{ID: uuid.NewV4(), Login: "nicole", Email: "nicole.braun@example.com", Active: true}
	agent := user.User{ID: uuid.NewV4(), Login: "agent", Email: "agent@example.com", Active: true}
	registry := user.NewInMemoryRegistry()
	registry.Add(customer)
	registry.Add(agent)

	mailer := &notification.RecordingMailer{}
	store := trigger.NewInMemoryStore()
	executor := actions.Executor{
		Users:           registry,
		Mailer:          mailer,
		SenderAddress:   senderAddress,
		SystemAddresses: []string{senderAddress},
	}
	return &engine{
		store:      store,
		dispatcher: dispatcher.New(store, condition.Evaluator{}, executor),
		mailer:     mailer,
		customer:   customer,
		agent:      agent,
	}
}

func (e *engine) newTicket(t *testing.T) *ticket.Ticket {
	tkt := ticket.New(uuid.NewV4())
	require.NoError(t, tkt.SetAttribute(ticket.AttrTitle, "printer is broken"))
	require.NoError(t, tkt.SetAttribute(ticket.AttrCustomerID, e.customer.ID))
	return tkt
}

func createCommit(tkt *ticket.Ticket, actor *user.User) dispatcher.Commit {
	return dispatcher.Commit{
		ID:    uuid.NewV4(),
		Actor: actor,
		At:    commitTime,
		Records: []dispatcher.Record{
			{Ticket: tkt, Kind: change.KindCreate, Changes: change.Diff(nil, tkt.Fields)},
		},
	}
}

func updateCommit(tkt *ticket.Ticket, older *ticket.Ticket, actor *user.User) dispatcher.Commit {
	return dispatcher.Commit{
		ID:    uuid.NewV4(),
		Actor: actor,
		At:    commitTime,
		Records: []dispatcher.Record{
			{Ticket: tkt, Kind: change.KindUpdate, Changes: change.Diff(older.Fields, tkt.Fields)},
		},
	}
}

func autoReplyRule(priority int) trigger.Trigger {
	return trigger.Trigger{
		ID:       uuid.NewV4(),
		Name:     "auto reply on create",
		Active:   true,
		Priority: priority,
		Condition: trigger.Condition{
			"ticket.action": {Operator: trigger.OperatorIs, Value: "create"},
		},
		Perform: trigger.Perform{
			{Path: trigger.PathNotificationEmail, Action: trigger.NotificationAction{
				Recipient: trigger.NewScalarRecipientSpec("ticket_customer"),
				Subject:   "Hello",
				Body:      "World!",
			}},
		},
	}
}

func TestNotify(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("create rule fires exactly once on create", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.store.Add(autoReplyRule(1)))

		tkt := e.newTicket(t)
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt, &e.agent)))

		sent := e.mailer.Sent()
		require.Len(t, sent, 1)
		require.Equal(t, e.customer.Email, sent[0].To)
		require.Equal(t, "Hello", sent[0].Subject)
		require.Equal(t, "World!", sent[0].Body)
		require.Len(t, tkt.Articles, 1)
	})

	t.Run("create rule does not fire on update", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.store.Add(autoReplyRule(1)))

		tkt := e.newTicket(t)
		older := tkt.Copy()
		require.NoError(t, tkt.SetAttribute(ticket.AttrTitle, "still broken"))
		require.NoError(t, e.dispatcher.Notify(context.Background(), updateCommit(tkt, older, &e.agent)))

		require.Empty(t, e.mailer.Sent())
	})

	t.Run("inactive rules never fire", func(t *testing.T) {
		e := newEngine(t)
		rule := autoReplyRule(1)
		rule.Active = false
		require.NoError(t, e.store.Add(rule))

		tkt := e.newTicket(t)
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt, &e.agent)))
		require.Empty(t, e.mailer.Sent())
	})

	t.Run("redelivered commit does not produce a second artifact", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.store.Add(autoReplyRule(1)))

		tkt := e.newTicket(t)
		commit := createCommit(tkt, &e.agent)
		require.NoError(t, e.dispatcher.Notify(context.Background(), commit))
		require.NoError(t, e.dispatcher.Notify(context.Background(), commit))

		require.Len(t, e.mailer.Sent(), 1)
		require.Len(t, tkt.Articles, 1)
	})

	t.Run("rules run in priority order and see earlier writes", func(t *testing.T) {
		e := newEngine(t)
		first := trigger.Trigger{
			ID: uuid.NewV4(), Name: "retitle", Active: true, Priority: 1,
			Condition: trigger.Condition{
				"ticket.action": {Operator: trigger.OperatorIs, Value: "create"},
			},
			Perform: trigger.Perform{
				{Path: "ticket.title", Action: trigger.AttributeAction{Value: "escalated"}},
			},
		}
		second := trigger.Trigger{
			ID: uuid.NewV4(), Name: "escalation mail", Active: true, Priority: 2,
			Condition: trigger.Condition{
				"ticket.title": {Operator: trigger.OperatorIs, Value: "escalated"},
			},
			Perform: trigger.Perform{
				{Path: trigger.PathNotificationEmail, Action: trigger.NotificationAction{
					Recipient: trigger.NewRecipientSpec("ticket_customer"),
					Subject:   "#{ticket.title}",
					Body:      "b",
				}},
			},
		}
		// insertion order must not matter
		require.NoError(t, e.store.Add(second))
		require.NoError(t, e.store.Add(first))

		tkt := e.newTicket(t)
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt, &e.agent)))

		sent := e.mailer.Sent()
		require.Len(t, sent, 1)
		require.Equal(t, "escalated", sent[0].Subject)
	})

	t.Run("a failing rule does not starve the remaining ones", func(t *testing.T) {
		e := newEngine(t)
		broken := trigger.Trigger{
			ID: uuid.NewV4(), Name: "broken write", Active: true, Priority: 1,
			Perform: trigger.Perform{
				{Path: "ticket.state_id", Action: trigger.AttributeAction{Value: "not-a-reference"}},
			},
		}
		require.NoError(t, e.store.Add(broken))
		require.NoError(t, e.store.Add(autoReplyRule(2)))

		tkt := e.newTicket(t)
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt, &e.agent)))
		require.Len(t, e.mailer.Sent(), 1)
	})

	t.Run("pre condition matches against the committing actor", func(t *testing.T) {
		e := newEngine(t)
		rule := trigger.Trigger{
			ID: uuid.NewV4(), Name: "own ticket touched", Active: true,
			Condition: trigger.Condition{
				"ticket.owner_id": {Operator: trigger.OperatorIs, PreCondition: trigger.PreConditionCurrentUserID},
			},
			Perform: trigger.Perform{
				{Path: trigger.PathNotificationEmail, Action: trigger.NotificationAction{
					Recipient: trigger.NewRecipientSpec("ticket_customer"),
					Subject:   "s", Body: "b",
				}},
			},
		}
		require.NoError(t, e.store.Add(rule))

		tkt := e.newTicket(t)
		require.NoError(t, tkt.SetAttribute(ticket.AttrOwnerID, e.agent.ID))
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt, &e.agent)))
		require.Len(t, e.mailer.Sent(), 1)

		// a different actor does not match
		other := user.User{ID: uuid.NewV4(), Email: "other@example.com", Active: true}
		tkt2 := e.newTicket(t)
		require.NoError(t, tkt2.SetAttribute(ticket.AttrOwnerID, e.agent.ID))
		require.NoError(t, e.dispatcher.Notify(context.Background(), createCommit(tkt2, &other)))
		require.Len(t, e.mailer.Sent(), 1)
	})

	t.Run("per-record changes accumulate across rules", func(t *testing.T) {
		e := newEngine(t)
		retitle := trigger.Trigger{
			ID: uuid.NewV4(), Name: "retitle", Active: true, Priority: 1,
			Perform: trigger.Perform{
				{Path: "ticket.title", Action: trigger.AttributeAction{Value: "escalated"}},
			},
		}
		require.NoError(t, e.store.Add(retitle))

		tkt := e.newTicket(t)
		commit := createCommit(tkt, &e.agent)
		require.NoError(t, e.dispatcher.Notify(context.Background(), commit))

		titleChange := commit.Records[0].Changes.Find(ticket.AttrTitle)
		require.NotNil(t, titleChange)
	})

	t.Run("multiple records in one commit are all dispatched", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.store.Add(autoReplyRule(1)))

		first := e.newTicket(t)
		second := e.newTicket(t)
		commit := dispatcher.Commit{
			ID:    uuid.NewV4(),
			Actor: &e.agent,
			At:    commitTime,
			Records: []dispatcher.Record{
				{Ticket: first, Kind: change.KindCreate, Changes: change.Diff(nil, first.Fields)},
				{Ticket: second, Kind: change.KindCreate, Changes: change.Diff(nil, second.Fields)},
			},
		}
		require.NoError(t, e.dispatcher.Notify(context.Background(), commit))
		require.Len(t, e.mailer.Sent(), 2)
	})

	t.Run("concurrent commits for the same ticket serialize", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.store.Add(autoReplyRule(1)))

		tkt := e.newTicket(t)
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			commit := createCommit(tkt, &e.agent)
			go func() {
				defer wg.Done()
				errs <- e.dispatcher.Notify(context.Background(), commit)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		// every commit is a distinct firing, but none of them interleaved:
		// each produced exactly one article
		require.Len(t, tkt.Articles, 8)
		require.Len(t, e.mailer.Sent(), 8)
	})
}
