package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/dispatcher"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/user"
)

// TicketSource lists the tickets whose pending time has been reached at the
// given instant. Each ticket is reported once; a later sweep must not hand
// out the same pending deadline again.
type TicketSource interface {
	PendingReached(ctx context.Context, now time.Time) ([]*ticket.Ticket, error)
}

// Notifier is the commit sink of the sweeper, satisfied by
// dispatcher.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, commit dispatcher.Commit) error
}

// PendingSweeper periodically collects tickets whose pending_time deadline
// has passed and feeds them to the rule engine as synthetic update commits,
// so time-based rules fire without a user touching the ticket.
type PendingSweeper struct {
	Source     TicketSource
	Dispatcher Notifier
	// Actor is attributed as the author of the synthetic commits, typically
	// a system user.
	Actor *user.User
	// Clock is the sweep time source; nil means time.Now.
	Clock func() time.Time

	cron *cron.Cron
}

// NewPendingSweeper creates a sweeper over the given ticket source and
// commit sink.
func NewPendingSweeper(source TicketSource, notifier Notifier, actor *user.User) *PendingSweeper {
	return &PendingSweeper{
		Source:     source,
		Dispatcher: notifier,
		Actor:      actor,
	}
}

// Start begins sweeping on the given cron schedule (for example "@every 1m").
func (s *PendingSweeper) Start(schedule string) error {
	c := cron.New()
	err := c.AddFunc(schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the sweep schedule. A sweep already in flight runs to
// completion.
func (s *PendingSweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Sweep runs one sweep cycle immediately. Each reached ticket is dispatched
// as its own commit so one failing ticket does not starve the rest.
func (s *PendingSweeper) Sweep(ctx context.Context) {
	now := s.now()
	tickets, err := s.Source.PendingReached(ctx, now)
	if err != nil {
		log.Error(ctx, map[string]interface{}{"err": err}, "pending sweep failed to list tickets")
		return
	}
	for _, tkt := range tickets {
		pendingTime, _ := tkt.Attribute(ticket.AttrPendingTime)
		commit := dispatcher.Commit{
			ID:    uuid.NewV4(),
			Actor: s.Actor,
			At:    now,
			Records: []dispatcher.Record{
				{
					Ticket: tkt,
					Kind:   change.KindUpdate,
					// the deadline passing is the change being reported
					Changes: change.Set{
						{AttributeName: ticket.AttrPendingTime, OldValue: pendingTime, NewValue: pendingTime},
					},
				},
			},
		}
		if err := s.Dispatcher.Notify(ctx, commit); err != nil {
			log.Error(ctx, map[string]interface{}{
				"ticket_id": tkt.ID,
				"err":       err,
			}, "pending sweep dispatch failed")
		}
	}
	if len(tickets) > 0 {
		log.Info(ctx, map[string]interface{}{"tickets": len(tickets)}, "pending sweep dispatched reached tickets")
	}
}

func (s *PendingSweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// InMemoryTicketSource is a TicketSource over an in-process ticket set,
// used in tests and standalone setups without a database.
type InMemoryTicketSource struct {
	mu      sync.Mutex
	tickets []*ticket.Ticket
	swept   map[uuid.UUID]struct{}
}

// NewInMemoryTicketSource creates an empty source.
func NewInMemoryTicketSource() *InMemoryTicketSource {
	return &InMemoryTicketSource{swept: map[uuid.UUID]struct{}{}}
}

// Add registers a ticket with the source.
func (s *InMemoryTicketSource) Add(tkt *ticket.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, tkt)
}

// PendingReached returns every ticket whose pending_time lies at or before
// now and that has not been handed out by an earlier call.
func (s *InMemoryTicketSource) PendingReached(ctx context.Context, now time.Time) ([]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reached []*ticket.Ticket
	for _, tkt := range s.tickets {
		if _, done := s.swept[tkt.ID]; done {
			continue
		}
		v, ok := tkt.Attribute(ticket.AttrPendingTime)
		if !ok || v == nil {
			continue
		}
		deadline, ok := v.(time.Time)
		if !ok {
			continue
		}
		if !deadline.After(now) {
			reached = append(reached, tkt)
			s.swept[tkt.ID] = struct{}{}
		}
	}
	return reached, nil
}
