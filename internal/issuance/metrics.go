package issuance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the issuance flow.
type Metrics struct {
	PreparesTotal  prometheus.Counter
	StripsIssued   prometheus.Counter
	EuropeanIssued prometheus.Counter
	SignFailures   prometheus.Counter
}

// NewMetrics registers all issuance metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		PreparesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_prepare_issue_total",
			Help: "Total number of prepare-issue sessions handed out",
		}),
		StripsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_domestic_strips_issued_total",
			Help: "Total number of domestic strip credentials issued",
		}),
		EuropeanIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_european_certificates_issued_total",
			Help: "Total number of European certificates issued",
		}),
		SignFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_sign_failures_total",
			Help: "Total number of sign requests that ended in an error",
		}),
	}
}
