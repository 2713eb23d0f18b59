package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "portal"

// Metrics holds the domain collectors shared by the api and the gate.
type Metrics struct {
	AuthEvents    *prometheus.CounterVec
	MailDelivered *prometheus.CounterVec
	MailFailures  *prometheus.CounterVec
	GateDecisions *prometheus.CounterVec
}

// NewMetrics registers the domain collectors with reg, reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	authEvents, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Authentication flow outcomes partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	if err != nil {
		return nil, err
	}

	delivered, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mail",
		Name:      "delivered_total",
		Help:      "Emails handed to the transport partitioned by template.",
	}, []string{"template"})
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mail",
		Name:      "failures_total",
		Help:      "Emails that exhausted their delivery attempts partitioned by template.",
	}, []string{"template"})
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Subdomain gate decisions partitioned by resource and outcome.",
	}, []string{"resource", "outcome"})
	if err != nil {
		return nil, err
	}

	return &Metrics{
		AuthEvents:    authEvents,
		MailDelivered: delivered,
		MailFailures:  failures,
		GateDecisions: decisions,
	}, nil
}

// RecordAuth increments the auth outcome counter. Safe on a nil receiver.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil || m.AuthEvents == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordGate increments the gate decision counter. Safe on a nil receiver.
func (m *Metrics) RecordGate(resource, outcome string) {
	if m == nil || m.GateDecisions == nil {
		return
	}
	m.GateDecisions.WithLabelValues(resource, outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(collector); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}
