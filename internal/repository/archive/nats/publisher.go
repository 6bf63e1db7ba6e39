package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/repository/archive"
)

type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

type publisher struct {
	nc     conn
	logger *slog.Logger
}

func Connect(cfg Config, logger *slog.Logger) (*publisher, error) {
	opts := []nats.Option{
		nats.Name("watchparty"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("nats error", "error", err)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return newPublisher(nc, logger), nil
}

func newPublisher(nc conn, logger *slog.Logger) *publisher {
	return &publisher{
		nc:     nc,
		logger: logger,
	}
}

// Publish sends the event as JSON. Delivery is fire-and-forget; Flush waits for the server.
func (p *publisher) Publish(ctx context.Context, event domain.LogEvent) error {
	// '.', '*' and '>' in a room id would change the subject hierarchy
	if !domain.ValidID(event.RoomID) {
		return fmt.Errorf("failed to publish event: %w", domain.ErrInvalidID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(archive.Subject(event.RoomID), data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event", "error", err, "sequence", event.Sequence)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (p *publisher) Flush(ctx context.Context) error {
	return p.nc.FlushWithContext(ctx)
}

func (p *publisher) Close() {
	p.nc.Close()
}
