// Package nats publishes outbox messages to a NATS server.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
)

// Publisher maps outbox topics onto prefixed NATS subjects.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to cfg.URL and logs connection lifecycle changes.
func NewPublisher(ctx context.Context, cfg config.NATSConfig, logg *logger.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}
	opts := []nats.Option{
		nats.Name("geodir outbox publisher"),
		nats.MaxReconnects(-1),
	}
	if cfg.ConnectWait > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectWait))
	}
	if logg != nil {
		opts = append(opts,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "nats disconnected")
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logg.Info(logg.WithField(ctx, "url", nc.ConnectedUrl()), "nats reconnected")
			}),
		)
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "url", nc.ConnectedUrl()), "nats publisher initialized")
	}
	return &Publisher{nc: nc, prefix: strings.Trim(cfg.SubjectPrefix, ". ")}, nil
}

// Subject returns the NATS subject used for topic.
func (p *Publisher) Subject(topic string) string {
	return Subject(p.prefix, topic)
}

// Subject joins prefix and topic with a dot, skipping empty parts.
func Subject(prefix, topic string) string {
	prefix = strings.Trim(prefix, ". ")
	topic = strings.Trim(topic, ". ")
	switch {
	case prefix == "":
		return topic
	case topic == "":
		return prefix
	default:
		return prefix + "." + topic
	}
}

// Publish sends msg with its attributes as headers and flushes so the
// caller only marks the row published once the server has it.
func (p *Publisher) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	subject := p.Subject(topic)
	if subject == "" {
		return errors.New("nats subject is required")
	}
	out := nats.NewMsg(subject)
	out.Data = msg.Data
	for k, v := range msg.Attributes {
		out.Header.Set(k, v)
	}
	if err := p.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// Ping reports whether the connection is usable.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.nc == nil {
		return errors.New("nats publisher not initialized")
	}
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats connection is %s", p.nc.Status())
	}
	return nil
}

// Close drains in-flight messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

var _ outbox.Broker = (*Publisher)(nil)
