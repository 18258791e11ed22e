package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quillbin", Name: "document_operations_total", Help: "Number of document store operations by kind and outcome."},
		[]string{"op", "outcome"},
	)
	ShareTokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "quillbin", Name: "share_tokens_issued_total", Help: "Number of share tokens issued."},
	)
	ShareTokensRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "quillbin", Name: "share_tokens_rejected_total", Help: "Number of share tokens that failed verification or scope checks."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quillbin", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quillbin", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentOps)
	reg.MustRegister(ShareTokensIssued)
	reg.MustRegister(ShareTokensRejected)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
