package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unclebandit/anniversary-reminder/internal/model"
)

var (
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweeps_total",
			Help: "Catch-up sweeps by outcome",
		},
		[]string{"outcome"},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Catch-up sweep latency",
			Buckets: prometheus.DefBuckets,
		},
	)
	sweepItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweep_items_total",
			Help: "Records handled by catch-up sweeps, by result",
		},
		[]string{"result"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sends_total",
			Help: "Send log entries written, by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(sweepsTotal, sweepDuration, sweepItems, sendsTotal)
}

func observeSweep(result *SweepResult, err error, took time.Duration) {
	sweepDuration.Observe(took.Seconds())
	if err != nil {
		sweepsTotal.WithLabelValues("failed").Inc()
		return
	}
	sweepsTotal.WithLabelValues("completed").Inc()
	sweepItems.WithLabelValues("processed").Add(float64(result.Counts.Processed))
	sweepItems.WithLabelValues("skipped").Add(float64(result.Counts.Skipped))
	sweepItems.WithLabelValues("error").Add(float64(result.Counts.Errors))
}

func observeSend(status model.SendStatus) {
	sendsTotal.WithLabelValues(string(status)).Inc()
}
