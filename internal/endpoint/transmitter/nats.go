package transmitter

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSettings configures a NATS bridge transport. Raw frame bytes received on
// the subscribe subject enter the router like any other endpoint's traffic;
// frames routed to this endpoint are published on the publish subject.
type NATSSettings struct {
	// URL of the NATS server, e.g. "nats://localhost:4222".
	URL string `yaml:"url"`
	// SubscribeSubject carries inbound frames.
	SubscribeSubject string `yaml:"subscribe_subject"`
	// PublishSubject carries outbound frames.
	PublishSubject string `yaml:"publish_subject"`
}

// natsAddr is the pseudo peer address of a NATS bridge: the subject frames
// arrive on. Like a serial line, the bridge has a single logical peer.
type natsAddr struct {
	subject string
}

func (a natsAddr) Network() string { return "nats" }
func (a natsAddr) String() string  { return a.subject }

type natsTransmitter struct {
	conn       *nats.Conn
	sub        *nats.Subscription
	pubSubject string
	log        *logrus.Entry
	sink       chan Packet
	stream     chan Packet
}

func newNATS(ctx context.Context, log *logrus.Entry, settings NATSSettings) (Transmitter, error) {
	log.Debugf("connecting to NATS at %s", settings.URL)
	conn, err := nats.Connect(settings.URL, nats.Name("mavlink-shouter"))
	if err != nil {
		return nil, err
	}

	msgCh := make(chan *nats.Msg, channelSize)
	sub, err := conn.ChanSubscribe(settings.SubscribeSubject, msgCh)
	if err != nil {
		conn.Close()
		return nil, err
	}

	t := &natsTransmitter{
		conn:       conn,
		sub:        sub,
		pubSubject: settings.PublishSubject,
		log:        log,
		sink:       make(chan Packet, channelSize),
		stream:     make(chan Packet, channelSize),
	}
	go t.recvLoop(ctx, msgCh, natsAddr{subject: settings.SubscribeSubject})
	go t.sendLoop(ctx)
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
		conn.Close()
	}()
	return t, nil
}

func (t *natsTransmitter) Sink() chan<- Packet   { return t.sink }
func (t *natsTransmitter) Stream() <-chan Packet { return t.stream }

func (t *natsTransmitter) Close() error {
	err := t.sub.Unsubscribe()
	t.conn.Close()
	return err
}

func (t *natsTransmitter) recvLoop(ctx context.Context, msgCh <-chan *nats.Msg, addr natsAddr) {
	defer close(t.stream)
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case t.stream <- Packet{Data: msg.Data, Addr: addr}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *natsTransmitter) sendLoop(ctx context.Context) {
	for {
		select {
		case pkt := <-t.sink:
			if err := t.conn.Publish(t.pubSubject, pkt.Data); err != nil {
				t.log.Errorf("NATS publish to %s failed: %v", t.pubSubject, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
