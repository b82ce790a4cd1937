package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/difficulty"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/events"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/gateway"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

type Services struct {
	Rooms      *room.Manager
	Gateway    *gateway.Service
	Dispatcher *events.Dispatcher

	closers []func() error
}

func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	// Wire up dependency injection chain
	// Registry → Difficulty catalog → Session engine → Rooms → Gateway

	registry := puzzle.DefaultRegistry()
	catalog, err := difficulty.Load(cfg.DifficultyConfig, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load difficulties: %w", err)
	}
	engine := session.NewEngine(registry, cfg.MaxStrikes)

	var closers []func() error
	var publisher events.EventPublisher = events.LogPublisher{}
	if cfg.NATS.URL != "" {
		js, err := events.NewJetStreamPublisher(ctx, cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event publisher: %w", err)
		}
		publisher = js
		closers = append(closers, js.Close)
		log.Info().Str("nats_url", cfg.NATS.URL).Str("stream", cfg.NATS.StreamName).Msg("publishing events to JetStream")
	} else {
		log.Info().Msg("NATS_URL not set, events are only logged")
	}
	dispatcher := events.NewDispatcher(publisher, events.DefaultDispatcherConfig())

	connections := gateway.NewConnectionManager(cfg.Connection)
	rooms := room.NewManager(engine, catalog,
		room.WithNotifier(connections),
		room.WithEventSink(dispatcher),
	)

	return &Services{
		Rooms:      rooms,
		Gateway:    gateway.NewService(connections, rooms, catalog),
		Dispatcher: dispatcher,
		closers:    closers,
	}, nil
}

// Close releases external connections.
func (s *Services) Close() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("failed to close service")
		}
	}
}
