package dailyrecord

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives the report of every finished pass.
type Observer interface {
	ObservePass(rep Report, err error)
}

type nopObserver struct{}

func (nopObserver) ObservePass(Report, error) {}

// PrometheusObserver exports pass outcomes as Prometheus metrics.
type PrometheusObserver struct {
	passes      *prometheus.CounterVec
	duration    prometheus.Histogram
	records     prometheus.Counter
	daysMerged  prometheus.Counter
	daysSkipped prometheus.Counter
	created     prometheus.Counter
	attachments prometheus.Counter
	lastSuccess prometheus.Gauge
}

// NewPrometheusObserver registers the sync metrics with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const ns, sub = "almanac", "daily_record"
	o := &PrometheusObserver{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "passes_total",
			Help: "Finished sync passes by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "pass_duration_seconds",
			Help:    "Wall time of a sync pass.",
			Buckets: prometheus.DefBuckets,
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "records_fetched_total",
			Help: "Memos fetched from the server.",
		}),
		daysMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "days_merged_total",
			Help: "Daily notes rewritten with fetched memos.",
		}),
		daysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "days_skipped_total",
			Help: "Days left alone because the note or its header was missing.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "notes_created_total",
			Help: "Daily notes created by the sync.",
		}),
		attachments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "attachments_downloaded_total",
			Help: "Attachments written into the vault.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "last_success_timestamp_seconds",
			Help: "Finish time of the last pass without error.",
		}),
	}
	collectors := []prometheus.Collector{
		o.passes, o.duration, o.records, o.daysMerged, o.daysSkipped, o.created, o.attachments, o.lastSuccess,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("dailyrecord: register metric: %w", err)
		}
	}
	return o, nil
}

// ObservePass implements Observer.
func (o *PrometheusObserver) ObservePass(rep Report, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrSyncInProgress):
		outcome = "overlap"
	case err != nil:
		outcome = "error"
	}
	o.passes.WithLabelValues(outcome).Inc()
	if rep.StartedAt.IsZero() {
		return
	}
	o.duration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	o.records.Add(float64(rep.Records))
	o.daysMerged.Add(float64(rep.DaysMerged))
	o.daysSkipped.Add(float64(rep.DaysSkipped))
	o.created.Add(float64(rep.FilesCreated))
	o.attachments.Add(float64(rep.Attachments))
	if err == nil {
		o.lastSuccess.Set(float64(rep.FinishedAt.Unix()))
	}
}
