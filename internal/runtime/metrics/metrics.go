// Package metrics exposes prometheus instrumentation of contract admission
// and execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wasmsandbox"

// Rejection stages.
const (
	StageParse      = "parse"
	StageValidation = "validation"
	StageGatekeeper = "gatekeeper"
	StageInstrument = "instrument"
	StageCompile    = "compile"
)

// Call outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeOutOfGas   = "out_of_gas"
	OutcomeError      = "error"
	OutcomeDenied     = "write_denied"
	OutcomeAborted    = "aborted"
	OutcomeDepthLimit = "call_depth"
)

// Metrics groups the collectors of one VM. A nil *Metrics records nothing.
type Metrics struct {
	admissions prometheus.Counter
	rejections *prometheus.CounterVec
	calls      *prometheus.CounterVec
	gasUsed    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_admitted_total",
			Help:      "Modules that passed the admission pipeline and were compiled.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_rejected_total",
			Help:      "Modules rejected during admission, by stage.",
		}, []string{"stage"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Contract entry point calls, by entry point and outcome.",
		}, []string{"entry_point", "outcome"}),
		gasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used by one contract call, internal plus external.",
			Buckets:   prometheus.ExponentialBuckets(1e6, 10, 8),
		}, []string{"entry_point"}),
	}
	for _, c := range []prometheus.Collector{m.admissions, m.rejections, m.calls, m.gasUsed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.admissions.Inc()
}

func (m *Metrics) Rejected(stage string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(stage).Inc()
}

// Called records a finished call and the gas it used.
func (m *Metrics) Called(entryPoint, outcome string, gasUsed uint64) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(entryPoint, outcome).Inc()
	m.gasUsed.WithLabelValues(entryPoint).Observe(float64(gasUsed))
}
