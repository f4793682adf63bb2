// Package metrics records per-run Prometheus metrics and optionally pushes
// them to a Pushgateway, since a digest run is a short-lived batch job.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	namespace = "paperdigest"
	jobName   = "paperdigest"
)

// Recorder holds the run metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	pushURL  string

	PapersTotal   *prometheus.CounterVec
	RunDuration   prometheus.Gauge
	RunOutcome    *prometheus.GaugeVec
	MessagesSent  prometheus.Counter
	LastRunUnixTS prometheus.Gauge
}

var _ ports.MetricsSink = (*Recorder)(nil)

// NewRecorder registers the metrics; an empty pushURL keeps them in-process.
func NewRecorder(pushURL string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pushURL:  pushURL,
		PapersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_total",
			Help:      "Papers seen per pipeline stage",
		}, []string{"stage"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run",
		}),
		RunOutcome: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_outcome",
			Help:      "Set to 1 for the state and error kind of the last run",
		}, []string{"state", "error_kind"}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent",
			Help:      "Digest messages delivered to the channel",
		}),
		LastRunUnixTS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records the outcome and pushes it when a Pushgateway is configured.
func (r *Recorder) Observe(ctx context.Context, o domain.RunOutcome) error {
	r.PapersTotal.WithLabelValues("fetched").Add(float64(o.Fetched))
	r.PapersTotal.WithLabelValues("filtered").Add(float64(o.Filtered))
	r.PapersTotal.WithLabelValues("ranked").Add(float64(o.Ranked))
	r.PapersTotal.WithLabelValues("summarized").Add(float64(o.SummarizedOK))
	r.PapersTotal.WithLabelValues("summary_failed").Add(float64(o.SummarizedFailed))
	r.MessagesSent.Add(float64(o.MessagesSent))
	r.RunDuration.Set(o.Duration().Seconds())

	r.RunOutcome.Reset()
	r.RunOutcome.WithLabelValues(string(o.State), string(o.ErrorKind)).Set(1)

	finished := o.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.LastRunUnixTS.Set(float64(finished.Unix()))

	if r.pushURL == "" {
		return nil
	}
	if err := push.New(r.pushURL, jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", r.pushURL, err)
	}
	return nil
}
