package transmitter

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// TCPSettings configures a TCP transport.
type TCPSettings struct {
	// Address is the local "IP:PORT" the listener binds.
	Address string `yaml:"address"`
}

// tcpTransmitter accepts peer connections and keeps the write half of each,
// keyed by remote address, so outbound frames can be steered to the right
// peer. A disconnect removes only that peer.
type tcpTransmitter struct {
	listener net.Listener
	log      *logrus.Entry
	sink     chan Packet
	stream   chan Packet

	mu    sync.Mutex
	conns map[string]net.Conn
}

func newTCP(ctx context.Context, log *logrus.Entry, settings TCPSettings) (Transmitter, error) {
	log.Debugf("binding TCP listener to %s", settings.Address)
	listener, err := net.Listen("tcp", settings.Address)
	if err != nil {
		return nil, err
	}

	t := &tcpTransmitter{
		listener: listener,
		log:      log,
		sink:     make(chan Packet, channelSize),
		stream:   make(chan Packet, channelSize),
		conns:    make(map[string]net.Conn),
	}
	go t.acceptLoop(ctx)
	go t.sendLoop(ctx)
	go func() {
		<-ctx.Done()
		t.Close()
	}()
	return t, nil
}

func (t *tcpTransmitter) Sink() chan<- Packet   { return t.sink }
func (t *tcpTransmitter) Stream() <-chan Packet { return t.stream }

func (t *tcpTransmitter) Close() error {
	err := t.listener.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, conn := range t.conns {
		conn.Close()
		delete(t.conns, addr)
	}
	return err
}

func (t *tcpTransmitter) acceptLoop(ctx context.Context) {
	defer close(t.stream)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.log.Errorf("accepting connection: %v", err)
				continue
			}
			return
		}
		addr := conn.RemoteAddr()
		t.log.Debugf("accepted connection from %s", addr)

		t.mu.Lock()
		t.conns[addr.String()] = conn
		t.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.recvLoop(ctx, conn, addr)
		}()
	}
}

// recvLoop reads one peer's byte stream until EOF or error, then removes the
// peer's writer mapping.
func (t *tcpTransmitter) recvLoop(ctx context.Context, conn net.Conn, addr net.Addr) {
	defer func() {
		conn.Close()
		t.mu.Lock()
		delete(t.conns, addr.String())
		t.mu.Unlock()
	}()

	buf := make([]byte, maxPacketSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.log.Debugf("connection closed by peer %s: %v", addr, err)
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

func (t *tcpTransmitter) sendLoop(ctx context.Context) {
	for {
		select {
		case pkt := <-t.sink:
			t.mu.Lock()
			conn, ok := t.conns[pkt.Addr.String()]
			t.mu.Unlock()
			if !ok {
				t.log.Debugf("no connection to %s", pkt.Addr)
				continue
			}
			if _, err := conn.Write(pkt.Data); err != nil {
				t.log.Errorf("TCP send to %s failed: %v", pkt.Addr, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
