package change

import (
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/user"
)

// Kind discriminates how the record under evaluation entered the current
// commit. A record's first-ever commit is a create transition, all
// subsequent ones are updates; the two are mutually exclusive over the
// record's lifetime.
type Kind string

const (
	// KindCreate marks the commit that created the record.
	KindCreate Kind = "create"
	// KindUpdate marks any later commit touching the record.
	KindUpdate Kind = "update"
)

// Context is the transient evaluation context of one record within one
// commit. It is built by the dispatcher, handed to the condition evaluator
// and the perform executor, and discarded once dispatch for the commit
// completes.
type Context struct {
	// CommitID identifies the logical unit of work being dispatched.
	CommitID uuid.UUID
	// Kind is the record's transition in this commit.
	Kind Kind
	// Actor is the user whose action produced the commit; nil for
	// system-originated commits.
	Actor *user.User
	// Now is the wall-clock instant of the evaluation. The dispatcher stamps
	// it once per commit so that time-based predicates and relative perform
	// values are consistent within the run, and so that tests can freeze it.
	Now time.Time
	// Changes are the attribute changes observed for the record in this
	// commit. Writes made by earlier rules of the same commit are appended
	// here so later rules see them, without spawning a nested dispatch.
	Changes Set
}
