// Package metrics exports codec activity as Prometheus metrics.
package metrics

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/zerocopy/codec"
	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Observer is a codec.Observer backed by Prometheus collectors.
type Observer struct {
	encodes      *prometheus.CounterVec
	decodes      *prometheus.CounterVec
	encodedBytes *prometheus.HistogramVec
	decodedBytes prometheus.Histogram
	plans        *prometheus.CounterVec
}

var _ codec.Observer = (*Observer)(nil)

// NewObserver registers the codec collectors with r. A nil r leaves them
// unregistered.
func NewObserver(r prometheus.Registerer) *Observer {
	return &Observer{
		encodes: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "zerocopy_encodes_total",
			Help: "Total number of encode calls by result.",
		}, []string{"result"}),
		decodes: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "zerocopy_decodes_total",
			Help: "Total number of decode calls by result.",
		}, []string{"result"}),
		encodedBytes: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zerocopy_encoded_bytes",
			Help:    "Bytes committed per successful encode, by region.",
			Buckets: prometheus.ExponentialBuckets(8, 4, 10),
		}, []string{"region"}),
		decodedBytes: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Name:    "zerocopy_decoded_bytes",
			Help:    "Input bytes per successful decode.",
			Buckets: prometheus.ExponentialBuckets(8, 4, 10),
		}),
		plans: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "zerocopy_plan_cache_lookups_total",
			Help: "Plan cache lookups by outcome.",
		}, []string{"outcome"}),
	}
}

// result is "ok" or the error kind.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return string(e.Kind)
	}
	return "other"
}

func (o *Observer) ObserveEncode(_ *formula.Formula, sizes codec.Sizes, err error) {
	o.encodes.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	o.encodedBytes.WithLabelValues("stack").Observe(float64(sizes.Stack))
	o.encodedBytes.WithLabelValues("heap").Observe(float64(sizes.Heap))
}

func (o *Observer) ObserveDecode(_ *formula.Formula, n int, err error) {
	o.decodes.WithLabelValues(result(err)).Inc()
	if err == nil {
		o.decodedBytes.Observe(float64(n))
	}
}

func (o *Observer) ObservePlan(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	o.plans.WithLabelValues(outcome).Inc()
}
