package adapter

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts run activity in a private registry that can be dumped in
// the node-exporter textfile format at the end of a run.
type Metrics struct {
	registry  *prometheus.Registry
	verdicts  *prometheus.CounterVec
	generated *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	requests  *prometheus.CounterVec
	skipped   prometheus.Counter
}

// NewMetrics registers the mutflow counters in a fresh registry.
func NewMetrics() *Metrics {
	mt := &Metrics{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mutflow",
			Name:      "verdicts_total",
			Help:      "Mutant verdicts recorded, by status and origin.",
		}, []string{"status", "origin"}),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mutflow",
			Name:      "mutants_generated_total",
			Help:      "Mutants emitted by a source, by origin.",
		}, []string{"origin"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mutflow",
			Name:      "mutants_rejected_total",
			Help:      "Candidate mutants dropped before testing, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mutflow",
			Name:      "llm_requests_total",
			Help:      "Model requests, by client and outcome.",
		}, []string{"client", "outcome"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mutflow",
			Name:      "mutants_skipped_total",
			Help:      "Mutants whose original line was not found in the target file.",
		}),
	}

	mt.registry.MustRegister(mt.verdicts, mt.generated, mt.rejected, mt.requests, mt.skipped)

	return mt
}

// ObserveVerdict counts one verdict.
func (mt *Metrics) ObserveVerdict(status, origin string) {
	if mt == nil {
		return
	}

	mt.verdicts.WithLabelValues(status, origin).Inc()
}

// ObserveGenerated counts one emitted mutant.
func (mt *Metrics) ObserveGenerated(origin string) {
	if mt == nil {
		return
	}

	mt.generated.WithLabelValues(origin).Inc()
}

// ObserveRejected counts one dropped candidate.
func (mt *Metrics) ObserveRejected(reason string) {
	if mt == nil {
		return
	}

	mt.rejected.WithLabelValues(reason).Inc()
}

// ObserveRequest counts one model request.
func (mt *Metrics) ObserveRequest(client, outcome string) {
	if mt == nil {
		return
	}

	mt.requests.WithLabelValues(client, outcome).Inc()
}

// ObserveSkipped counts one mutant that could not be applied.
func (mt *Metrics) ObserveSkipped() {
	if mt == nil {
		return
	}

	mt.skipped.Inc()
}

// Registry exposes the underlying registry.
func (mt *Metrics) Registry() *prometheus.Registry {
	return mt.registry
}

// WriteTextfile dumps every counter to path. An empty path is a no-op.
func (mt *Metrics) WriteTextfile(path string) error {
	if mt == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, mt.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	slog.Info("Wrote metrics", "path", path)

	return nil
}
