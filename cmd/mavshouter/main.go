// Package main implements mavshouter, a MAVLink message router. It bridges
// UDP, TCP, serial and NATS endpoints so that MAVLink v1/v2 frames arriving
// on any endpoint reach exactly the peers that should receive them, based on
// a dynamically learned address book.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/jwidauer/mavlink-shouter/internal/config"
	"github.com/jwidauer/mavlink-shouter/internal/logging"
	"github.com/jwidauer/mavlink-shouter/internal/shouter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mavshouter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	godotenv.Load()

	configPath := flag.String("config", "config/default.yml", "path to the configuration file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logging.New(settings.Log.Level, settings.Log.Format)
	log.WithField("instance", uuid.NewString()).Info("starting mavlink-shouter")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := shouter.New(ctx, log, settings)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
