/*
Package actions executes the perform side of a matched rule.

A rule's perform is a list of configurable, atomic actions: write an
attribute, compute a pending time, add or remove tags, send a notification.
The executor applies them to the matched ticket in declaration order, because
later actions may depend on earlier attribute writes (e.g. a state change
before a notification referencing the new state).

Failures of individual actions are collected and surfaced together instead of
aborting the perform halfway: every action is attempted, and the caller
receives the full set of failures alongside the changes that did apply. Only
a perform entry that should never have passed validation aborts the run.

Notifications are idempotency-aware: every firing carries a deduplication key
derived from the rule, the ticket and the commit, and a firing whose key is
already present on the ticket produces no second article.
*/
package actions
