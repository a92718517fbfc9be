package endpoint

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jwidauer/mavlink-shouter/internal/endpoint/transmitter"
	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
	"github.com/jwidauer/mavlink-shouter/internal/metrics"
	"github.com/jwidauer/mavlink-shouter/internal/router"
)

// receiver drains one endpoint's transport, decodes frames out of the byte
// stream, learns sender addresses, and publishes every frame to the routing
// plane.
type receiver struct {
	name    string
	log     *logrus.Entry
	stream  <-chan transmitter.Packet
	targets *TargetDatabase
	decoder *mavlink.Decoder
	bus     *router.Broadcaster
	metrics *metrics.Metrics
}

func newReceiver(
	name string,
	log *logrus.Entry,
	stream <-chan transmitter.Packet,
	targets *TargetDatabase,
	decoder *mavlink.Decoder,
	bus *router.Broadcaster,
	m *metrics.Metrics,
) *receiver {
	decoder.OnResync = func() {
		m.Resyncs.WithLabelValues(name).Inc()
	}
	return &receiver{
		name:    name,
		log:     log,
		stream:  stream,
		targets: targets,
		decoder: decoder,
		bus:     bus,
		metrics: m,
	}
}

// run consumes packets until the transport stream closes or the routing plane
// shuts down.
func (r *receiver) run(ctx context.Context) {
	for {
		select {
		case pkt, ok := <-r.stream:
			if !ok {
				r.log.Info("transport stream closed, receiver stopping")
				return
			}
			if !r.handle(pkt) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handle decodes every complete frame in the packet. It reports false when
// the routing plane is gone and the receiver should stop.
func (r *receiver) handle(pkt transmitter.Packet) bool {
	r.decoder.Write(pkt.Data)
	for {
		frame, ok := r.decoder.Next()
		if !ok {
			return true
		}
		r.metrics.FramesReceived.WithLabelValues(r.name).Inc()
		r.log.Debugf("received frame from %s", pkt.Addr)

		if sender := frame.RoutingInfo.Sender; sender.IsValidSender() {
			r.targets.InsertOrUpdate(sender, pkt.Addr)
			r.metrics.LearnedTargets.WithLabelValues(r.name).Set(float64(r.targets.Len()))
		} else {
			r.log.Errorf("received frame from %s with invalid sender id: %s", pkt.Addr, sender)
		}

		if !r.bus.Publish(frame) {
			r.log.Info("routing plane closed, receiver stopping")
			return false
		}
	}
}
