package transmitter

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
)

// UDPSettings configures a UDP transport.
type UDPSettings struct {
	// Address is the local "IP:PORT" to bind. Binding a multicast address
	// joins the group on the unspecified interface.
	Address string `yaml:"address"`
}

// udpTransmitter is a bound UDP socket with one reader and one writer task.
type udpTransmitter struct {
	conn   *net.UDPConn
	log    *logrus.Entry
	sink   chan Packet
	stream chan Packet
}

func newUDP(ctx context.Context, log *logrus.Entry, settings UDPSettings) (Transmitter, error) {
	addr, err := resolveUDPAddr(settings.Address)
	if err != nil {
		return nil, err
	}

	log.Debugf("binding UDP socket to %s", addr)
	var conn *net.UDPConn
	if addr.IP != nil && addr.IP.IsMulticast() {
		log.Debugf("joining multicast group %s", addr.IP)
		conn, err = net.ListenMulticastUDP("udp", nil, addr)
	} else {
		conn, err = net.ListenUDP("udp", addr)
	}
	if err != nil {
		return nil, err
	}

	t := &udpTransmitter{
		conn:   conn,
		log:    log,
		sink:   make(chan Packet, channelSize),
		stream: make(chan Packet, channelSize),
	}
	go t.recvLoop(ctx)
	go t.sendLoop(ctx)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return t, nil
}

func (t *udpTransmitter) Sink() chan<- Packet   { return t.sink }
func (t *udpTransmitter) Stream() <-chan Packet { return t.stream }

func (t *udpTransmitter) Close() error {
	return t.conn.Close()
}

func (t *udpTransmitter) recvLoop(ctx context.Context) {
	defer close(t.stream)
	buf := make([]byte, maxPacketSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.log.Errorf("UDP receive failed: %v", err)
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.stream <- Packet{Data: data, Addr: addr}:
		case <-ctx.Done():
			return
		}
	}
}

func (t *udpTransmitter) sendLoop(ctx context.Context) {
	for {
		select {
		case pkt := <-t.sink:
			if _, err := t.conn.WriteTo(pkt.Data, pkt.Addr); err != nil {
				// One unreachable destination must not stall the rest.
				t.log.Errorf("UDP send to %s failed: %v", pkt.Addr, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
