package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
	"github.com/getmockd/pipeline/pkg/store"
)

const (
	namespace = "pipeline"

	// OutcomeSuccess labels delivered successes.
	OutcomeSuccess = "success"
)

var (
	operationLabels = []string{"collection", "op"}
	outcomeLabels   = []string{"collection", "op", "outcome"}
	collectionLabel = []string{"collection"}
)

// Observer records pipe activity. It implements pipe.Observer.
type Observer struct {
	reg prometheus.Registerer

	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	cancelled *prometheus.CounterVec
}

// New creates an Observer and registers its collectors with reg.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{reg: reg}
	o.started = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_started_total",
		Help:      "Number of pipe operations dispatched",
	}, operationLabels)
	o.completed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_completed_total",
		Help:      "Number of pipe operations delivered, by outcome",
	}, outcomeLabels)
	o.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of pipe exchanges",
		Buckets:   prometheus.DefBuckets,
	}, operationLabels)
	o.cancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_cancelled_total",
		Help:      "Number of pipe operations discarded by cancel",
	}, collectionLabel)

	reg.MustRegister(
		o.started,
		o.completed,
		o.duration,
		o.cancelled,
	)
	return o
}

// OnStart implements pipe.Observer.
func (o *Observer) OnStart(coll string, op pipe.Operation) {
	o.started.WithLabelValues(coll, string(op)).Inc()
}

// OnSuccess implements pipe.Observer.
func (o *Observer) OnSuccess(coll string, op pipe.Operation, d time.Duration) {
	o.completed.WithLabelValues(coll, string(op), OutcomeSuccess).Inc()
	o.duration.WithLabelValues(coll, string(op)).Observe(d.Seconds())
}

// OnFailure implements pipe.Observer. Rejections that never reached the
// transport are counted but not timed.
func (o *Observer) OnFailure(coll string, op pipe.Operation, kind collection.Kind, d time.Duration) {
	o.completed.WithLabelValues(coll, string(op), kind.String()).Inc()
	if d > 0 {
		o.duration.WithLabelValues(coll, string(op)).Observe(d.Seconds())
	}
}

// OnCancel implements pipe.Observer.
func (o *Observer) OnCancel(coll string, n int) {
	if n > 0 {
		o.cancelled.WithLabelValues(coll).Add(float64(n))
	}
}

// RegisterStore exports the record count of s as a gauge.
func RegisterStore(reg prometheus.Registerer, s store.Store) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "store_records",
		Help:        "Number of records held by a store",
		ConstLabels: prometheus.Labels{"collection": s.Name()},
	}, func() float64 {
		return float64(s.Count())
	}))
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

var _ pipe.Observer = (*Observer)(nil)
