// Package metrics defines the custom Prometheus metrics of the access code
// service. It is the single source of truth for metric names, labels, and
// help strings. Metrics register with the default registry on import, which
// is the registry served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accesscodes"

// ── Issuance metrics ──────────────────────────────────────────────────────────

// CodesIssuedTotal counts newly minted access codes.
// Labels:
//   - role: "field_officer" or "finance"
//   - source: "manager" for explicit generation, "rotation" after a consumption
var CodesIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "codes_issued_total",
		Help:      "Total number of access codes issued, by role and source.",
	},
	[]string{"role", "source"},
)

// CodesRevokedTotal counts manual revocations that expired an active code.
var CodesRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "codes_revoked_total",
		Help:      "Total number of active access codes revoked by a manager.",
	},
)

// ── Consumption metrics ───────────────────────────────────────────────────────

// CodesConsumedTotal counts successful single-use consumptions.
// Label:
//   - role: the role the code was issued for
var CodesConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "codes_consumed_total",
		Help:      "Total number of access codes consumed, by role.",
	},
	[]string{"role"},
)

// ConsumptionRejectionsTotal counts rejected consumption attempts.
// Label:
//   - reason: "invalid", "expired", "throttled" or "bad_request"
var ConsumptionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumption_rejections_total",
		Help:      "Total number of rejected access code consumptions, by reason.",
	},
	[]string{"reason"},
)

// ConsumptionDuration measures a consumption request end to end, rotation
// included.
var ConsumptionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "consumption_duration_seconds",
		Help:      "Duration of access code validation and consumption.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsDroppedTotal counts lifecycle events discarded because the
// dispatcher queue was full or already stopped.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped before persistence.",
	},
)

// AuditEventsFailedTotal counts audit events the store refused.
var AuditEventsFailedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_failed_total",
		Help:      "Total number of audit events that failed to persist.",
	},
)

// AuditQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
