package transmitter

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// SerialSettings configures a serial transport.
type SerialSettings struct {
	// Port is the device path, e.g. "/dev/ttyUSB0".
	Port string `yaml:"port"`
	// Baud is the line rate; defaults to 57600 when unset.
	Baud int `yaml:"baud,omitempty"`
}

const defaultBaud = 57600

// serialAddr is the pseudo peer address of a serial line. A serial link has a
// single peer, so the port name stands in for it in the target database.
type serialAddr struct {
	port string
}

func (a serialAddr) Network() string { return "serial" }
func (a serialAddr) String() string  { return a.port }

// serialTransmitter drives one serial port as an endpoint transport.
type serialTransmitter struct {
	port   serial.Port
	addr   serialAddr
	log    *logrus.Entry
	sink   chan Packet
	stream chan Packet
}

func newSerial(ctx context.Context, log *logrus.Entry, settings SerialSettings) (Transmitter, error) {
	baud := settings.Baud
	if baud == 0 {
		baud = defaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	log.Debugf("opening serial port %s at %d baud", settings.Port, baud)
	port, err := serial.Open(settings.Port, mode)
	if err != nil {
		return nil, err
	}

	t := &serialTransmitter{
		port:   port,
		addr:   serialAddr{port: settings.Port},
		log:    log,
		sink:   make(chan Packet, channelSize),
		stream: make(chan Packet, channelSize),
	}
	go t.recvLoop(ctx)
	go t.sendLoop(ctx)
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	return t, nil
}

func (t *serialTransmitter) Sink() chan<- Packet   { return t.sink }
func (t *serialTransmitter) Stream() <-chan Packet { return t.stream }

func (t *serialTransmitter) Close() error {
	return t.port.Close()
}

func (t *serialTransmitter) recvLoop(ctx context.Context) {
	defer close(t.stream)
	buf := make([]byte, maxPacketSize)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			t.log.Errorf("serial read on %s failed: %v", t.addr, err)
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.stream <- Packet{Data: data, Addr: t.addr}:
		case <-ctx.Done():
			return
		}
	}
}

// sendLoop writes outbound frames to the line. The destination address is
// ignored; a serial link has exactly one peer.
func (t *serialTransmitter) sendLoop(ctx context.Context) {
	for {
		select {
		case pkt := <-t.sink:
			if _, err := t.port.Write(pkt.Data); err != nil {
				t.log.Errorf("serial write on %s failed: %v", t.addr, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
