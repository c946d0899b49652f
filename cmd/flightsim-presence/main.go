package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eytandecker/flightsim-presence/internal/config"
	"github.com/eytandecker/flightsim-presence/internal/geocode"
	"github.com/eytandecker/flightsim-presence/internal/logging"
	internalmcp "github.com/eytandecker/flightsim-presence/internal/mcp"
	"github.com/eytandecker/flightsim-presence/internal/presence"
	"github.com/eytandecker/flightsim-presence/internal/simconnect"
	"github.com/eytandecker/flightsim-presence/internal/state"
)

const eventBuffer = 64

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flightsim-presence: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Path:      cfg.Log.Path,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	connector := simconnect.NewConnector(
		simconnect.Dialer(simconnect.Config{
			Host:    cfg.SimConnect.Host,
			Port:    cfg.SimConnect.Port,
			Timeout: cfg.SimConnect.Timeout,
			AppName: cfg.SimConnect.AppName,
		}),
		simconnect.ConnectorConfig{
			SlowMode:             cfg.SimConnect.SlowMode,
			FlightPlanRetryDelay: cfg.SimConnect.FlightPlanRetryDelay,
		},
	)

	mgr := state.NewManager(cfg.State.StaleThreshold, nil)

	services := geocode.NewClient(geocode.Config{
		GeocodeURL: cfg.Services.GeocodeURL,
		AirportURL: cfg.Services.AirportURL,
		Timeout:    cfg.Services.Timeout,
	})
	sink := presence.NewDiscordSink(cfg.Presence.DiscordAppID)
	defer sink.Close()

	pipeline := presence.NewPipeline(sink, services, services, presence.Config{
		PublishInterval: cfg.Presence.PublishInterval,
		GeocodeInterval: cfg.Presence.GeocodeInterval,
		LargeImageKey:   cfg.Presence.LargeImageKey,
		PreparingText:   cfg.Presence.PreparingText,
	})
	callsign := cfg.Presence.Callsign
	if callsign == "" {
		callsign = presence.NewCallsign()
	}
	pipeline.Start(callsign)
	defer pipeline.Stop()

	stateEvents := connector.Subscribe(eventBuffer)
	presenceEvents := connector.Subscribe(eventBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx, stateEvents) })
	g.Go(func() error { return pipeline.Run(gctx, presenceEvents) })
	g.Go(func() error {
		runConnectLoop(gctx, connector, cfg.SimConnect.RetryDelay)
		return gctx.Err()
	})
	if cfg.MCP.Enabled {
		srv := internalmcp.NewServer(mgr, connector, cfg.MCP.RequestTimeout)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runConnectLoop keeps a simulator session open, retrying with a fixed delay
// after every failed attempt or closed session. It disconnects when ctx is
// done.
func runConnectLoop(ctx context.Context, connector *simconnect.Connector, retryDelay time.Duration) {
	defer connector.Disconnect()

	for {
		if err := connector.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Info("Simulator not available", "error", err, "retry_in", retryDelay)
		} else {
			select {
			case <-ctx.Done():
				return
			case <-connector.Done():
				slog.Info("Simulator session ended", "retry_in", retryDelay)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}
