// Package metrics holds the router's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every gauge and counter the router exposes. Labels carry the
// endpoint name so per-endpoint traffic can be told apart.
type Metrics struct {
	FramesReceived *prometheus.CounterVec
	FramesSent     *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	BroadcastLag   *prometheus.CounterVec
	Resyncs        *prometheus.CounterVec
	LearnedTargets *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics bundle, registering it with the
// default Prometheus registry on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = newMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mavshouter_frames_received_total",
			Help: "Frames decoded from an endpoint's transport.",
		}, []string{"endpoint"}),
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mavshouter_frames_sent_total",
			Help: "Frames handed to an endpoint's transport for delivery.",
		}, []string{"endpoint"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mavshouter_frames_dropped_total",
			Help: "Frames dropped at an endpoint, by reason.",
		}, []string{"endpoint", "reason"}),
		BroadcastLag: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mavshouter_broadcast_lag_total",
			Help: "Frames lost by an endpoint's sender falling behind the broadcast channel.",
		}, []string{"endpoint"}),
		Resyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mavshouter_codec_resyncs_total",
			Help: "Times an endpoint's decoder lost framing and scanned for a magic byte.",
		}, []string{"endpoint"}),
		LearnedTargets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mavshouter_learned_targets",
			Help: "Entries in an endpoint's learned target database.",
		}, []string{"endpoint"}),
	}
}
