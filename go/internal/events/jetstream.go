package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64 // -1 keeps everything within MaxAge
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "BOMB_EVENTS",
		SubjectPrefix:   "bomb.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 10 * time.Minute,
	}
}

// JetStreamPublisher publishes room events to a JetStream stream, one subject per event type.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(cfg.URL, natsOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("event stream: dial %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("event stream: jetstream handle: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

// natsOptions reports connection state changes through the logger.
func natsOptions(cfg JetStreamConfig) []nats.Option {
	return []nats.Option{
		nats.Name("ticktickboom-server"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("stream", cfg.StreamName).Msg("event stream connection lost")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("event stream connection restored")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("event stream async error")
		}),
	}
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	cfg := p.config
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Bomb room lifecycle and game events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

// ensureStream creates the event stream or brings an existing one in line with the config.
func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	want := p.streamConfig()

	stream, err := p.js.Stream(ctx, want.Name)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := p.js.CreateStream(ctx, want); err != nil {
			return fmt.Errorf("event stream: create %s: %w", want.Name, err)
		}
		log.Info().Str("stream", want.Name).Strs("subjects", want.Subjects).Msg("event stream created")
		return nil
	case err != nil:
		return fmt.Errorf("event stream: lookup %s: %w", want.Name, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("event stream: describe %s: %w", want.Name, err)
	}
	if sameStreamLimits(info.Config, want) {
		return nil
	}
	if _, err := p.js.UpdateStream(ctx, want); err != nil {
		return fmt.Errorf("event stream: reconfigure %s: %w", want.Name, err)
	}
	log.Info().Str("stream", want.Name).Msg("event stream reconfigured")
	return nil
}

// Subject is the subject an event type is published on.
func (p *JetStreamPublisher) Subject(eventType string) string {
	return subjectFor(p.config.SubjectPrefix, eventType)
}

func subjectFor(prefix, eventType string) string {
	return prefix + "." + eventType
}

// envelope is the JSON body of every published message.
type envelope struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	RoomCode  string    `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func encodeEvent(event Event) ([]byte, error) {
	data, err := json.Marshal(envelope{
		EventID:   event.ID.String(),
		EventType: event.Type,
		RoomCode:  event.RoomCode,
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return data, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	subject := p.Subject(event.Type)
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{event.Type},
			"Room-Code":  []string{event.RoomCode},
			"Event-ID":   []string{event.ID.String()},
		},
	},
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("event stream: publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("room_code", event.RoomCode).
		Uint64("seq", ack.Sequence).
		Msg("room event stored")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func sameStreamLimits(a, b jetstream.StreamConfig) bool {
	return slices.Equal(a.Subjects, b.Subjects) &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
