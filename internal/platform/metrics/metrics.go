// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package metrics exposes Prometheus instrumentation for the identity core.

Counters are write-only from the core's perspective: nothing in the business
logic ever reads them back. They exist so operators can alert on credential
stuffing, lockout storms, and authorization-denial spikes.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the collector set used by the IAM server.
type Registry struct {
	registry *prometheus.Registry

	// LoginAttempts counts credential verifications by outcome
	// (success, invalid_credentials, rate_limited, suspended, inactive).
	LoginAttempts *prometheus.CounterVec

	// SessionValidations counts opaque-token validations by outcome
	// (ok, not_found, expired, revoked).
	SessionValidations *prometheus.CounterVec

	// MFAVerifications counts MFA proof checks by method and outcome.
	MFAVerifications *prometheus.CounterVec

	// AuthzDecisions counts permission resolver verdicts (allow, deny,
	// insufficient_privilege).
	AuthzDecisions *prometheus.CounterVec
}

// New creates a fresh [Registry] with all collectors registered.
//
// A private registry (not the global default) keeps tests isolated and avoids
// duplicate-registration panics under repeated construction.
func New() *Registry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Registry{
		registry: registry,
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcanum",
			Subsystem: "iam",
			Name:      "login_attempts_total",
			Help:      "Credential verification attempts by outcome.",
		}, []string{"outcome"}),
		SessionValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcanum",
			Subsystem: "iam",
			Name:      "session_validations_total",
			Help:      "Opaque session token validations by outcome.",
		}, []string{"outcome"}),
		MFAVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcanum",
			Subsystem: "iam",
			Name:      "mfa_verifications_total",
			Help:      "MFA proof verifications by method and outcome.",
		}, []string{"method", "outcome"}),
		AuthzDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcanum",
			Subsystem: "iam",
			Name:      "authz_decisions_total",
			Help:      "Permission resolver decisions by verdict.",
		}, []string{"verdict"}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
