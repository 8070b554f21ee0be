package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/actions"
	"github.com/webvolta/zammad/change"
	"github.com/webvolta/zammad/condition"
	"github.com/webvolta/zammad/errors"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/metric"
	"github.com/webvolta/zammad/ticket"
	"github.com/webvolta/zammad/trigger"
	"github.com/webvolta/zammad/user"
)

// Record is one changed record within a commit: the ticket's current state,
// how it entered the commit, and the attribute diff of the change.
type Record struct {
	Ticket  *ticket.Ticket
	Kind    change.Kind
	Changes change.Set
}

// Commit is one logical unit-of-work boundary as pushed by the persistence
// layer: one or more record mutations batched as a single transaction.
type Commit struct {
	ID    uuid.UUID
	Actor *user.User
	// At is the wall-clock instant of the commit; the zero value means "use
	// the dispatcher's clock".
	At      time.Time
	Records []Record
}

// Dispatcher consumes commit events and runs the rule engine over them: load
// the enabled rules, filter by condition, execute the perform actions. One
// commit is evaluated to completion before the next; evaluations for the
// same record never interleave.
type Dispatcher struct {
	Rules     trigger.Store
	Evaluator condition.Evaluator
	Executor  actions.Executor
	// Clock is the evaluation time source; nil means time.Now. Tests freeze
	// it.
	Clock func() time.Time

	mu          sync.Mutex
	recordLocks map[uuid.UUID]*sync.Mutex
}

// New creates a dispatcher over the given rule store, evaluator and executor.
func New(rules trigger.Store, evaluator condition.Evaluator, executor actions.Executor) *Dispatcher {
	return &Dispatcher{
		Rules:       rules,
		Evaluator:   evaluator,
		Executor:    executor,
		recordLocks: map[uuid.UUID]*sync.Mutex{},
	}
}

// Notify dispatches one committed transaction. For every changed record the
// enabled rules run in priority order (stable tie-break on id); a rule fires
// at most once per (rule, record, commit). Writes made by a firing are
// merged into the record's changeset of the same commit, so later rules see
// fresh state, but they never spawn a nested dispatch cycle.
//
// Execution failures of individual rules are logged and do not abort the
// remaining rules. Only a programming invariant violation (malformed rule
// data that bypassed validation) aborts the whole cycle and is returned.
func (d *Dispatcher) Notify(ctx context.Context, commit Commit) error {
	startTime := time.Now()
	defer metric.ReportDispatchCompleted(startTime)

	ctx = log.ContextWithCommitID(ctx, commit.ID.String())

	rules, err := d.Rules.ActiveRules(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to load active rules")
	}
	trigger.SortRules(rules)

	now := commit.At
	if now.IsZero() {
		now = d.now()
	}

	// at-most-once guard per (rule, record, commit)
	fired := map[string]struct{}{}

	for i := range commit.Records {
		record := &commit.Records[i]
		if record.Ticket == nil {
			return errors.NewInternalError("commit contains a record without a ticket")
		}
		unlock := d.lockRecord(record.Ticket.ID)
		err := d.dispatchRecord(ctx, commit, record, rules, now, fired)
		unlock()
		if err != nil {
			return err
		}
	}

	log.Debug(ctx, map[string]interface{}{"records": len(commit.Records), "rules": len(rules)}, "commit dispatched")
	return nil
}

func (d *Dispatcher) dispatchRecord(ctx context.Context, commit Commit, record *Record, rules []trigger.Trigger, now time.Time, fired map[string]struct{}) error {
	for _, rule := range rules {
		key := fireKey(rule.ID, record.Ticket.ID, commit.ID)
		if _, alreadyFired := fired[key]; alreadyFired {
			continue
		}

		evalCtx := change.Context{
			CommitID: commit.ID,
			Kind:     record.Kind,
			Actor:    commit.Actor,
			Now:      now,
			Changes:  record.Changes,
		}

		metric.ReportRuleEvaluated()
		matched, err := d.Evaluator.Matches(rule.Condition, record.Ticket, evalCtx)
		if err != nil {
			return errs.Wrapf(err, "rule '%s' failed to evaluate", rule.Name)
		}
		if !matched {
			continue
		}

		fired[key] = struct{}{}
		metric.ReportRuleFired()
		log.Debug(ctx, map[string]interface{}{"rule_id": rule.ID, "ticket_id": record.Ticket.ID}, "rule matched, executing perform")

		result, err := d.Executor.Apply(ctx, rule, record.Ticket, evalCtx)
		// the firing's writes belong to the same commit: later rules see
		// them without a nested dispatch
		record.Changes = append(record.Changes, result.Changes...)
		if err != nil {
			if _, fatal := err.(errors.InternalError); fatal {
				return errs.Wrapf(err, "rule '%s' aborted the dispatch cycle", rule.Name)
			}
			metric.ReportExecutionFailure()
			log.Error(ctx, map[string]interface{}{
				"rule_id":   rule.ID,
				"ticket_id": record.Ticket.ID,
				"err":       err,
			}, "perform execution failed, continuing with remaining rules")
		}
	}
	return nil
}

// lockRecord serializes rule evaluation per record identity so concurrent
// commits touching the same ticket cannot race writes of the same attribute.
func (d *Dispatcher) lockRecord(ticketID uuid.UUID) func() {
	d.mu.Lock()
	l, ok := d.recordLocks[ticketID]
	if !ok {
		l = &sync.Mutex{}
		d.recordLocks[ticketID] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (d *Dispatcher) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

func fireKey(ruleID, ticketID, commitID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", ruleID, ticketID, commitID)
}
