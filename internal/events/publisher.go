package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher emits relay events to JetStream. A nil *Publisher is valid
// and publishes nothing, so callers never need an enabled check.
type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS, ensures the relay event stream exists, and returns
// a ready Publisher.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"relay.events.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", StreamName, err)
	}

	slog.Info("connected to NATS", "url", url)
	return &Publisher{conn: nc, js: js}, nil
}

// Publish emits an event on the given subject. Failures are logged and
// swallowed: event delivery must never fail a user request.
func (p *Publisher) Publish(ctx context.Context, subject, userID, detail string) {
	if p == nil {
		return
	}

	ev := Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshaling event", "error", err, "subject", subject)
		return
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		slog.Warn("publishing event", "error", err, "subject", subject)
	}
}

// Healthy reports whether the NATS connection is up.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn.IsConnected()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		slog.Warn("draining NATS connection", "error", err)
	}
}
