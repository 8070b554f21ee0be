package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/webvolta/zammad/log"
)

var (
	namespace = ""
	subsystem = "trigger"
)

var (
	rulesEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rules_evaluated_total",
		Help:      "Counter of rule condition evaluations.",
	})

	rulesFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rules_fired_total",
		Help:      "Counter of rule firings (condition matched, perform executed).",
	})

	executionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "execution_failures_total",
		Help:      "Counter of rule firings with at least one failed perform action.",
	})

	notificationsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notifications_suppressed_total",
		Help:      "Counter of notifications suppressed by security policy or auto response guard.",
	})

	dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "dispatch_duration_seconds",
		Help:      "Bucketed histogram of processing time (s) of one commit dispatch.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
	})
)

func init() {
	registerMetrics()
}

func registerMetrics() {
	rulesEvaluated = register(rulesEvaluated, "rules_evaluated_total").(prometheus.Counter)
	rulesFired = register(rulesFired, "rules_fired_total").(prometheus.Counter)
	executionFailures = register(executionFailures, "execution_failures_total").(prometheus.Counter)
	notificationsSuppressed = register(notificationsSuppressed, "notifications_suppressed_total").(prometheus.Counter)
	dispatchDuration = register(dispatchDuration, "dispatch_duration_seconds").(prometheus.Histogram)
	log.Debug(nil, nil, "trigger metrics registered successfully")
}

func register(c prometheus.Collector, name string) prometheus.Collector {
	err := prometheus.Register(c)
	if err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		log.Panic(nil, map[string]interface{}{
			"metric_name": prometheus.BuildFQName(namespace, subsystem, name),
			"err":         err,
		}, "failed to register the prometheus metric")
	}
	return c
}

// ReportRuleEvaluated counts one rule condition evaluation.
func ReportRuleEvaluated() {
	rulesEvaluated.Inc()
}

// ReportRuleFired counts one rule firing.
func ReportRuleFired() {
	rulesFired.Inc()
}

// ReportExecutionFailure counts one rule firing with failed perform actions.
func ReportExecutionFailure() {
	executionFailures.Inc()
}

// ReportNotificationSuppressed counts one suppressed notification.
func ReportNotificationSuppressed() {
	notificationsSuppressed.Inc()
}

// ReportDispatchCompleted records the duration of one commit dispatch.
func ReportDispatchCompleted(startTime time.Time) {
	dispatchDuration.Observe(time.Since(startTime).Seconds())
}
