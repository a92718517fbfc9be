// Package shouter assembles the router: it loads the dialect's offset table,
// builds the codec and the routing plane, binds every configured endpoint,
// and runs the whole thing until shutdown.
package shouter

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jwidauer/mavlink-shouter/internal/api"
	"github.com/jwidauer/mavlink-shouter/internal/config"
	"github.com/jwidauer/mavlink-shouter/internal/endpoint"
	"github.com/jwidauer/mavlink-shouter/internal/mavlink"
	"github.com/jwidauer/mavlink-shouter/internal/mavlink/definitions"
	"github.com/jwidauer/mavlink-shouter/internal/metrics"
	"github.com/jwidauer/mavlink-shouter/internal/router"
)

// Shouter is one fully assembled router process.
type Shouter struct {
	log       *logrus.Logger
	bus       *router.Broadcaster
	endpoints []*endpoint.Endpoint
	api       *api.Server
}

// New builds the router from its settings. Any error here is fatal: a dialect
// that fails to parse or an endpoint that fails to bind must stop startup.
func New(ctx context.Context, log *logrus.Logger, settings config.Settings) (*Shouter, error) {
	table, err := definitions.Load(settings.Definitions)
	if err != nil {
		return nil, fmt.Errorf("loading definitions: %w", err)
	}
	log.Infof("found %d targeted messages", len(table))

	codec := mavlink.NewCodec(table)
	bus := router.NewBroadcaster(settings.Router.ChannelSize)
	m := metrics.Default()

	log.Info("creating endpoints...")
	endpoints := make([]*endpoint.Endpoint, 0, len(settings.Endpoints))
	for _, epSettings := range settings.Endpoints {
		ep, err := endpoint.New(ctx, log, epSettings, codec, bus, m)
		if err != nil {
			return nil, fmt.Errorf("creating endpoint %q: %w", epSettings.Name, err)
		}
		endpoints = append(endpoints, ep)
	}

	s := &Shouter{log: log, bus: bus, endpoints: endpoints}
	if settings.API.Address != "" {
		s.api = api.New(log, settings.API.Address, endpoints)
	}
	return s, nil
}

// Run starts every endpoint task and blocks until the context is cancelled,
// then tears the fabric down and waits for all tasks to stop.
func (s *Shouter) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	s.log.Info("starting endpoints...")
	for _, ep := range s.endpoints {
		ep.Start(ctx, &wg)
	}

	if s.api != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.api.Run(ctx); err != nil {
				s.log.Errorf("status API failed: %v", err)
			}
		}()
	}

	<-ctx.Done()
	s.log.Info("shutting down...")

	for _, ep := range s.endpoints {
		ep.Close()
	}
	s.bus.Close()
	wg.Wait()
	return nil
}
