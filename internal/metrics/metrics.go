// Package metrics holds the Prometheus counters of ingestion, search and
// ancestry prediction runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genomatch"

// Registry owns a private Prometheus registry and the counters registered
// on it. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	Files          *prometheus.CounterVec
	Records        prometheus.Counter
	SkippedRecords prometheus.Counter
	Variants       prometheus.Counter
	ScanRecords    prometheus.Counter
	Queries        prometheus.Counter
	Predictions    *prometheus.CounterVec
	ToolFailures   *prometheus.CounterVec
}

// New creates a Registry with every counter registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "VCF files processed by final ingestion state.",
		}, []string{"state"}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "VCF records stored.",
		}),
		SkippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "skipped_records_total",
			Help:      "Structurally incomplete VCF records skipped.",
		}),
		Variants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "variants_total",
			Help:      "Per-sample variant observations created.",
		}),
		ScanRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "scan_records_total",
			Help:      "Records compared by genome-wide scans.",
		}),
		Queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "targeted_queries_total",
			Help:      "Locus queries answered by targeted searches.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ancestry",
			Name:      "predictions_total",
			Help:      "Ancestry predictions by outcome.",
		}, []string{"outcome"}),
		ToolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ancestry",
			Name:      "tool_failures_total",
			Help:      "External tool invocations that failed.",
		}, []string{"tool"}),
	}
	r.reg.MustRegister(r.Files, r.Records, r.SkippedRecords, r.Variants,
		r.ScanRecords, r.Queries, r.Predictions, r.ToolFailures)
	return r
}

// Ingestion states used as the Files label.
const (
	StateDone    = "done"
	StateAborted = "aborted"
	StateFailed  = "failed"
)

// Prediction outcomes used as the Predictions label.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// FileIngested counts one file in its final state.
func (r *Registry) FileIngested(state string) {
	if r == nil {
		return
	}
	r.Files.WithLabelValues(state).Inc()
}

// RecordsIngested adds stored and skipped record counts and created variants.
func (r *Registry) RecordsIngested(stored, skipped, variants int) {
	if r == nil {
		return
	}
	r.Records.Add(float64(stored))
	r.SkippedRecords.Add(float64(skipped))
	r.Variants.Add(float64(variants))
}

// Scanned adds the records compared by a genome-wide scan.
func (r *Registry) Scanned(records int) {
	if r == nil {
		return
	}
	r.ScanRecords.Add(float64(records))
}

// Searched adds the locus queries answered by a targeted search.
func (r *Registry) Searched(queries int) {
	if r == nil {
		return
	}
	r.Queries.Add(float64(queries))
}

// Predicted counts one ancestry prediction.
func (r *Registry) Predicted(outcome string) {
	if r == nil {
		return
	}
	r.Predictions.WithLabelValues(outcome).Inc()
}

// ToolFailed counts one failed external tool run.
func (r *Registry) ToolFailed(tool string) {
	if r == nil {
		return
	}
	r.ToolFailures.WithLabelValues(tool).Inc()
}

// WriteToTextfile writes every metric in the text exposition format to path.
func (r *Registry) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
