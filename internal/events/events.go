package events

import (
	"context"
	"fmt"
	"time"

	"owl-location/internal/config"
	"owl-location/internal/domain"
	"owl-location/internal/metrics"

	"go.uber.org/zap"
)

// Type 事件类型
type Type string

const (
	Created Type = "location.created"
	Updated Type = "location.updated"
	Deleted Type = "location.deleted"
)

// Event is a location change notification. Location is nil for deletes.
type Event struct {
	Type       Type             `json:"type"`
	ID         string           `json:"id"`
	Location   *domain.Location `json:"location,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func NewEvent(t Type, id string, l *domain.Location) Event {
	return Event{Type: t, ID: id, Location: l, OccurredAt: time.Now().UTC()}
}

// Publisher delivers change events to a downstream channel.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type instrumented struct {
	Publisher
	backend string
}

func (p instrumented) Publish(ctx context.Context, e Event) error {
	err := p.Publisher.Publish(ctx, e)
	metrics.EventsPublished.WithLabelValues(p.backend, metrics.Status(err)).Inc()
	return err
}

// Instrument counts every Publish of p under the given backend label.
func Instrument(p Publisher, backend string) Publisher {
	return instrumented{Publisher: p, backend: backend}
}

// New builds the publisher selected by cfg.Events.Backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.Events.Backend {
	case "", "none":
		return NopPublisher{}, nil
	case "redis":
		client := NewRedisClient(&cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Location events go to redis stream",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("stream", cfg.Events.Stream),
		)
		return Instrument(NewRedisStreamPublisher(client, cfg.Events.Stream), "redis"), nil
	case "mqtt":
		client, err := NewMQTTClient(&cfg.MQTT)
		if err != nil {
			return nil, err
		}
		logger.Info("Location events go to mqtt",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("topic_prefix", cfg.Events.TopicPrefix),
		)
		return Instrument(NewMQTTPublisher(client, cfg.Events.TopicPrefix, cfg.MQTT.QoS), "mqtt"), nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
}
