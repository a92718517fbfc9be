package endpoint

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jwidauer/mavlink-shouter/internal/endpoint/transmitter"
	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
	"github.com/jwidauer/mavlink-shouter/internal/metrics"
	"github.com/jwidauer/mavlink-shouter/internal/router"
)

// sender drains this endpoint's broadcast subscription and forwards each
// frame to every learned peer its routing info addresses. Frames matching no
// peer are dropped here; another endpoint may still deliver them.
type sender struct {
	name    string
	log     *logrus.Entry
	sink    chan<- transmitter.Packet
	targets *TargetDatabase
	codec   *mavlink.Codec
	sub     *router.Subscription
	metrics *metrics.Metrics
}

func newSender(
	name string,
	log *logrus.Entry,
	sink chan<- transmitter.Packet,
	targets *TargetDatabase,
	codec *mavlink.Codec,
	sub *router.Subscription,
	m *metrics.Metrics,
) *sender {
	return &sender{
		name:    name,
		log:     log,
		sink:    sink,
		targets: targets,
		codec:   codec,
		sub:     sub,
		metrics: m,
	}
}

// run forwards frames until the broadcast channel closes or the context is
// cancelled.
func (s *sender) run(ctx context.Context) {
	for {
		frame, lagged, ok := s.sub.Recv(ctx)
		if lagged > 0 {
			s.log.Warnf("lagging behind the routing plane, lost %d frames", lagged)
			s.metrics.BroadcastLag.WithLabelValues(s.name).Add(float64(lagged))
		}
		if !ok {
			s.log.Info("routing plane closed, sender stopping")
			return
		}
		s.send(ctx, frame)
	}
}

func (s *sender) send(ctx context.Context, frame mavlink.Frame) {
	addrs := s.targets.TargetAddresses(frame.RoutingInfo)
	if len(addrs) == 0 {
		s.metrics.FramesDropped.WithLabelValues(s.name, "no_target").Inc()
		return
	}
	data := s.codec.Encode(frame)
	for _, addr := range addrs {
		s.log.Debugf("sending frame to %s", addr)
		select {
		case s.sink <- transmitter.Packet{Data: data, Addr: addr}:
			s.metrics.FramesSent.WithLabelValues(s.name).Inc()
		case <-ctx.Done():
			return
		}
	}
}
