package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Submissions counts registration attempts by outcome (accepted, invalid, failed)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_registration_submissions_total",
			Help: "Registration submissions by outcome",
		},
		[]string{"outcome"},
	)

	// CertificateActions counts per-row certificate actions (download, send, render)
	CertificateActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_certificate_actions_total",
			Help: "Certificate actions by kind and outcome",
		},
		[]string{"action", "outcome"},
	)

	// Verifications counts certificate lookups by result
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_certificate_verifications_total",
			Help: "Certificate verifications by result",
		},
		[]string{"result"},
	)

	// RequestDuration tracks HTTP handler latency
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Registry holds the portal's collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		Submissions,
		CertificateActions,
		Verifications,
		RequestDuration,
		collectors.NewGoCollector(),
	)
}
