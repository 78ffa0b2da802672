// Package metrics is the in-process Prometheus registry: a single counter,
// incremented by the claimer loop on confirmed submission (spec 6).
//
// Grounded on the teacher's go.mod dependency on prometheus/client_golang
// and the registration/HTTP-exposition wiring klaytn's cmd/kcn/main.go uses
// for promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry wraps a dedicated prometheus.Registry so the process's metrics
// surface is exactly the counters this package defines, not whatever the
// default global registry happens to accumulate.
type Registry struct {
	registry   *prometheus.Registry
	claimsSent *prometheus.CounterVec
}

// New registers authority_claimer_claims_sent_total and returns the
// wrapping Registry.
func New() *Registry {
	claimsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_claimer_claims_sent_total",
		Help: "Total number of claims successfully submitted to the consensus contract.",
	}, []string{"chain_id", "dapp_address"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(claimsSent)

	return &Registry{registry: reg, claimsSent: claimsSent}
}

// IncClaimsSent increments the counter for the given chain id and dapp
// address.
func (r *Registry) IncClaimsSent(chainID, dappAddress string) {
	r.claimsSent.WithLabelValues(chainID, dappAddress).Inc()
}

// Prometheus exposes the underlying registry for promhttp.HandlerFor.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}
