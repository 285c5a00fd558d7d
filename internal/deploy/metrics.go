package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeploymentsTotal counts finished attempts by outcome ("success" or a failure kind).
	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployfi_deployments_total",
			Help: "Total number of deployment attempts",
		},
		[]string{"chain", "version", "outcome"},
	)

	// FailuresTotal counts classified failures across deployments and listing actions.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployfi_failures_total",
			Help: "Total number of classified failures",
		},
		[]string{"kind"},
	)

	// ExtractionsTotal counts extracted addresses by winning strategy.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployfi_extractions_total",
			Help: "Total number of extracted contract addresses",
		},
		[]string{"source"},
	)

	// ConfirmationSeconds tracks time from submission to receipt.
	ConfirmationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployfi_confirmation_seconds",
			Help:    "Time from submission to confirmed receipt in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"chain"},
	)
)
