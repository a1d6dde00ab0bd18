// Package metrics implements Prometheus metrics for a single run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the counters of one scan. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// BlocksTotal counts blocks read, by kind
	BlocksTotal *prometheus.CounterVec
	// PacketsTotal counts enhanced packet blocks seen
	PacketsTotal prometheus.Counter
	// CommentsTotal counts comment operations by op (found, absent, inserted, replaced, failed)
	CommentsTotal *prometheus.CounterVec
	// ScanStopsTotal counts how scans ended (eof, structural, ordering, canceled)
	ScanStopsTotal *prometheus.CounterVec
	// AnomaliesTotal counts tolerated format irregularities
	AnomaliesTotal prometheus.Counter
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		BlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapnote_blocks_total",
				Help: "Total number of pcapng blocks read",
			},
			[]string{"kind"},
		),
		PacketsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pcapnote_packets_total",
				Help: "Total number of enhanced packet blocks read",
			},
		),
		CommentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapnote_comments_total",
				Help: "Total number of comment lookups and edits",
			},
			[]string{"op"},
		),
		ScanStopsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapnote_scan_stops_total",
				Help: "Total number of scans by stop reason",
			},
			[]string{"reason"},
		),
		AnomaliesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pcapnote_anomalies_total",
				Help: "Total number of tolerated format anomalies",
			},
		),
	}
}

func (r *Recorder) ObserveBlock(kind string) {
	if r == nil {
		return
	}
	r.BlocksTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObservePacket() {
	if r == nil {
		return
	}
	r.PacketsTotal.Inc()
}

func (r *Recorder) ObserveComment(op string) {
	if r == nil {
		return
	}
	r.CommentsTotal.WithLabelValues(op).Inc()
}

func (r *Recorder) ObserveStop(reason string) {
	if r == nil {
		return
	}
	r.ScanStopsTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) ObserveAnomaly() {
	if r == nil {
		return
	}
	r.AnomaliesTotal.Inc()
}

// Gatherer exposes the registry, e.g. for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
