// Package metrics defines Prometheus metrics for the audit service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AuditsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacyaudit_audits_written_total",
			Help: "Audit rows written, by action",
		},
		[]string{"action"},
	)

	AuditsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "legacyaudit_audits_suppressed_total",
			Help: "Audit saves skipped because auditing was disabled",
		},
	)

	ForeignKeyMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "legacyaudit_foreign_key_mismatches_total",
			Help: "Member/membership pairs in the foreign-key context that do not match a MemberMembership row",
		},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacyaudit_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{AuditsWritten, AuditsSuppressed, ForeignKeyMismatches, RequestsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
