package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts quote computations by outcome (ok, degraded, error).
	QuoteTotal *prometheus.CounterVec
	// OverrideTotal counts last-price guard decisions (accepted, rejected, skipped).
	OverrideTotal *prometheus.CounterVec
	// CostResolveFailures counts quotes where no usable cost existed.
	CostResolveFailures prometheus.Counter
	// ReportRunsTotal counts margin report runs by result.
	ReportRunsTotal *prometheus.CounterVec
	// ReportViolations records the violation count of the latest report run.
	ReportViolations prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers pricing domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of quote computations by outcome.",
		}, []string{"result"})
		OverrideTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "last_price_override_total",
			Help:      "Count of last-price guard decisions.",
		}, []string{"decision"})
		CostResolveFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_resolve_failures_total",
			Help:      "Count of quotes degraded because no usable cost existed.",
		})
		ReportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "margin_report_runs_total",
			Help:      "Count of margin compliance report runs by result.",
		}, []string{"result"})
		ReportViolations = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "margin_report_violations",
			Help:      "Violations found by the most recent margin report run.",
		})
		reg.MustRegister(QuoteTotal, OverrideTotal, CostResolveFailures, ReportRunsTotal, ReportViolations)
	})
}
