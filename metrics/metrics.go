// Package metrics wraps the hub's Prometheus counters/gauges. Mirrors the
// teacher's stats package in spirit (one struct per subsystem, registered
// once at startup, cheap no-lock increments from hot paths) but backs onto
// github.com/prometheus/client_golang instead of the teacher's hand-rolled
// StatsD tracker, since the hub exposes a standard /metrics endpoint rather
// than pushing to a StatsD daemon.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Taxonomy tracks registry population and dispatch activity.
type Taxonomy struct {
	adapters    prometheus.Gauge
	services    prometheus.Gauge
	features    prometheus.Gauge
	watches     prometheus.Gauge
	methodCalls *prometheus.CounterVec
}

// NewTaxonomy registers the taxonomy metric family against reg. Pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests that construct more than one Backend.
func NewTaxonomy(reg prometheus.Registerer) *Taxonomy {
	t := &Taxonomy{
		adapters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "taxonomy", Name: "adapters",
			Help: "Number of adapters currently registered.",
		}),
		services: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "taxonomy", Name: "services",
			Help: "Number of services currently registered.",
		}),
		features: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "taxonomy", Name: "features",
			Help: "Number of features currently registered.",
		}),
		watches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "taxonomy", Name: "watches",
			Help: "Number of active watch subscriptions.",
		}),
		methodCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "taxonomy", Name: "method_calls_total",
			Help: "place_method_call dispatches by method and outcome.",
		}, []string{"method", "outcome"}),
	}
	reg.MustRegister(t.adapters, t.services, t.features, t.watches, t.methodCalls)
	return t
}

func (t *Taxonomy) AdapterRegistered() { t.adapters.Inc() }
func (t *Taxonomy) AdapterRemoved()    { t.adapters.Dec() }
func (t *Taxonomy) ServiceRegistered() { t.services.Inc() }
func (t *Taxonomy) ServiceRemoved()    { t.services.Dec() }
func (t *Taxonomy) FeatureRegistered() { t.features.Inc() }
func (t *Taxonomy) FeatureRemoved()    { t.features.Dec() }
func (t *Taxonomy) WatchRegistered()   { t.watches.Inc() }
func (t *Taxonomy) WatchCanceled()     { t.watches.Dec() }

func (t *Taxonomy) MethodCall(method string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	t.methodCalls.WithLabelValues(method, outcome).Inc()
}

// Rules tracks the rule engine's firing and mailbox activity.
type Rules struct {
	active   prometheus.Gauge
	running  prometheus.Gauge
	firings  *prometheus.CounterVec
}

func NewRules(reg prometheus.Registerer) *Rules {
	r := &Rules{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "rules", Name: "active",
			Help: "Number of enabled rules loaded.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "rules", Name: "running",
			Help: "Number of rule executors currently running.",
		}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "rules", Name: "firings_total",
			Help: "Rule body invocations by rule id and outcome.",
		}, []string{"rule_id", "outcome"}),
	}
	reg.MustRegister(r.active, r.running, r.firings)
	return r
}

func (r *Rules) RuleLoaded()   { r.active.Inc() }
func (r *Rules) RuleUnloaded() { r.active.Dec() }
func (r *Rules) RunStarted()   { r.running.Inc() }
func (r *Rules) RunFinished()  { r.running.Dec() }

func (r *Rules) Fired(ruleID string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.firings.WithLabelValues(ruleID, outcome).Inc()
}

// Process tracks the supervised-process subsystem's restart/backoff
// behavior (spec.md §4.6).
type Process struct {
	restarts *prometheus.CounterVec
	backoff  *prometheus.GaugeVec
}

func NewProcess(reg prometheus.Registerer) *Process {
	p := &Process{
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "process", Name: "restarts_total",
			Help: "Supervised process restarts by managed process name.",
		}, []string{"name"}),
		backoff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "process", Name: "backoff_seconds",
			Help: "Current restart backoff delay by managed process name.",
		}, []string{"name"}),
	}
	reg.MustRegister(p.restarts, p.backoff)
	return p
}

func (p *Process) Restarted(name string) { p.restarts.WithLabelValues(name).Inc() }
func (p *Process) BackoffSet(name string, seconds float64) {
	p.backoff.WithLabelValues(name).Set(seconds)
}

// TLS tracks certificate lifecycle events (spec.md §4.9/§4.10).
type TLS struct {
	certReloads  prometheus.Counter
	acmeRenewals *prometheus.CounterVec
	backupErrors *prometheus.CounterVec
}

func NewTLS(reg prometheus.Registerer) *TLS {
	t := &TLS{
		certReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "tls", Name: "cert_reloads_total",
			Help: "Certificate reload operations.",
		}),
		acmeRenewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "tls", Name: "acme_renewals_total",
			Help: "ACME renewal attempts by hostname and outcome.",
		}, []string{"hostname", "outcome"}),
		backupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "tls", Name: "backup_errors_total",
			Help: "Certificate backup store errors by store name.",
		}, []string{"store"}),
	}
	reg.MustRegister(t.certReloads, t.acmeRenewals, t.backupErrors)
	return t
}

func (t *TLS) CertReloaded() { t.certReloads.Inc() }
func (t *TLS) ACMERenewal(hostname string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	t.acmeRenewals.WithLabelValues(hostname, outcome).Inc()
}
func (t *TLS) BackupError(store string) { t.backupErrors.WithLabelValues(store).Inc() }
