// Package endpoint pairs a transport with the two tasks that drive it: a
// receiver feeding the routing plane and a sender draining it, sharing a
// per-endpoint database of learned peers.
package endpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jwidauer/mavlink-shouter/internal/endpoint/transmitter"
	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
	"github.com/jwidauer/mavlink-shouter/internal/metrics"
	"github.com/jwidauer/mavlink-shouter/internal/router"
)

// Duration is a time.Duration that unmarshals from YAML strings like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings configures one endpoint.
type Settings struct {
	Name string               `yaml:"name"`
	Kind transmitter.Settings `yaml:"kind"`
	// TargetTTL evicts learned peers idle for longer than this. Zero means
	// entries live forever.
	TargetTTL Duration `yaml:"target_ttl,omitempty"`
}

// Endpoint is one configured transport with its receiver and sender tasks.
type Endpoint struct {
	name     string
	receiver *receiver
	sender   *sender
	targets  *TargetDatabase
	tx       transmitter.Transmitter
}

// New binds the endpoint's transport and wires its tasks to the routing
// plane. Tasks do not run until Start.
func New(
	ctx context.Context,
	log *logrus.Logger,
	settings Settings,
	codec *mavlink.Codec,
	bus *router.Broadcaster,
	m *metrics.Metrics,
) (*Endpoint, error) {
	entry := log.WithField("endpoint", settings.Name)

	tx, err := transmitter.New(ctx, entry.WithField("kind", settings.Kind.Kind()), settings.Kind)
	if err != nil {
		return nil, err
	}

	targets := NewTargetDatabase(time.Duration(settings.TargetTTL))
	return &Endpoint{
		name: settings.Name,
		receiver: newReceiver(
			settings.Name, entry, tx.Stream(), targets,
			codec.NewDecoder(entry), bus, m,
		),
		sender: newSender(
			settings.Name, entry, tx.Sink(), targets,
			codec, bus.Subscribe(), m,
		),
		targets: targets,
		tx:      tx,
	}, nil
}

// Name returns the configured endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// Targets returns a snapshot of the endpoint's learned peers.
func (e *Endpoint) Targets() []LearnedTarget {
	return e.targets.Snapshot()
}

// Start launches the receiver and sender tasks.
func (e *Endpoint) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.receiver.run(ctx)
	}()
	go func() {
		defer wg.Done()
		e.sender.run(ctx)
	}()
}

// Close shuts the endpoint's transport down.
func (e *Endpoint) Close() error {
	return e.tx.Close()
}
