// Package transmitter binds endpoint transports. Every transport, whatever
// its medium, is reduced to the same pair of channels: a stream of received
// packets tagged with their source address and a sink of packets tagged with
// their destination address.
package transmitter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

const channelSize = 16

// maxPacketSize is the receive buffer size for datagram and stream reads.
const maxPacketSize = 65535

// Packet is a blob of transport bytes together with the peer address it came
// from or goes to.
type Packet struct {
	Data []byte
	Addr net.Addr
}

// Transmitter is a bound transport split into its send and receive halves.
// The stream channel closes when the transport shuts down or hits EOF; the
// sink must not be written to after Close.
type Transmitter interface {
	// Sink accepts outbound packets addressed to a peer.
	Sink() chan<- Packet
	// Stream yields inbound packets with their source address.
	Stream() <-chan Packet
	// Close shuts the transport down and releases its resources.
	Close() error
}

// Settings selects and configures a transport. Exactly one kind must be set.
type Settings struct {
	UDP    *UDPSettings    `yaml:"udp,omitempty"`
	TCP    *TCPSettings    `yaml:"tcp,omitempty"`
	Serial *SerialSettings `yaml:"serial,omitempty"`
	NATS   *NATSSettings   `yaml:"nats,omitempty"`
}

// Validate checks that exactly one transport kind is configured.
func (s Settings) Validate() error {
	n := 0
	for _, set := range []bool{s.UDP != nil, s.TCP != nil, s.Serial != nil, s.NATS != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return errors.New("endpoint kind must set exactly one of udp, tcp, serial, nats")
	}
	return nil
}

// New binds the configured transport and starts its I/O tasks. Bind failures
// are returned immediately; everything after that is handled leniently by the
// running transport.
func New(ctx context.Context, log *logrus.Entry, settings Settings) (Transmitter, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	switch {
	case settings.UDP != nil:
		return newUDP(ctx, log, *settings.UDP)
	case settings.TCP != nil:
		return newTCP(ctx, log, *settings.TCP)
	case settings.Serial != nil:
		return newSerial(ctx, log, *settings.Serial)
	default:
		return newNATS(ctx, log, *settings.NATS)
	}
}

// Kind names the configured transport, for logs.
func (s Settings) Kind() string {
	switch {
	case s.UDP != nil:
		return "udp"
	case s.TCP != nil:
		return "tcp"
	case s.Serial != nil:
		return "serial"
	case s.NATS != nil:
		return "nats"
	default:
		return "unset"
	}
}

func resolveUDPAddr(address string) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", address, err)
	}
	return addr, nil
}
