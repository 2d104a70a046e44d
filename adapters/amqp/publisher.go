// Package amqp publishes provisioning lifecycle events to a RabbitMQ topic
// exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-provisioning/core"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "provisioning.lifecycle"

type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// ChannelOpener returns a fresh channel per publish.
type ChannelOpener func() (Channel, error)

type Envelope struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	TenantID   string    `json:"tenantId"`
	TenantType string    `json:"tenantType,omitempty"`
	CompanyID  string    `json:"companyId,omitempty"`
	LocationID string    `json:"locationId,omitempty"`
	AppID      string    `json:"appId,omitempty"`
	WebhookID  string    `json:"webhookId,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher struct {
	open     ChannelOpener
	exchange string
	logger   core.Logger
	closer   func() error
}

type Option func(*Publisher)

func WithExchange(exchange string) Option {
	return func(p *Publisher) {
		if exchange = strings.TrimSpace(exchange); exchange != "" {
			p.exchange = exchange
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(open ChannelOpener, opts ...Option) (*Publisher, error) {
	if open == nil {
		return nil, fmt.Errorf("amqp: channel opener is required")
	}
	publisher := &Publisher{
		open:     open,
		exchange: DefaultExchange,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}
	return publisher, nil
}

// Dial connects to url and declares the durable topic exchange.
func Dial(url string, opts ...Option) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	publisher, err := NewPublisher(func() (Channel, error) {
		return conn.Channel()
	}, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(publisher.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	publisher.closer = conn.Close
	return publisher, nil
}

// RoutingKey is "provisioning.<action>", e.g. "provisioning.installed".
func RoutingKey(action core.LifecycleAction) string {
	return "provisioning." + strings.TrimSpace(string(action))
}

func (p *Publisher) Publish(ctx context.Context, event core.LifecycleEvent) error {
	if p == nil || p.open == nil {
		return fmt.Errorf("amqp: publisher is not configured")
	}
	if strings.TrimSpace(string(event.Action)) == "" {
		return fmt.Errorf("amqp: lifecycle action is required")
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	envelope := Envelope{
		ID:         uuid.NewString(),
		Action:     string(event.Action),
		TenantID:   event.TenantID,
		TenantType: string(event.TenantType),
		CompanyID:  event.CompanyID,
		LocationID: event.LocationID,
		AppID:      event.AppID,
		WebhookID:  event.WebhookID,
		Error:      event.Error,
		OccurredAt: occurredAt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("amqp: open channel: %w", err)
	}
	defer ch.Close()

	correlationID := strings.TrimSpace(event.WebhookID)
	if correlationID == "" {
		correlationID = envelope.ID
	}
	key := RoutingKey(event.Action)
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     envelope.ID,
		CorrelationId: correlationID,
		Timestamp:     occurredAt,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish %s: %w", key, err)
	}
	if p.logger != nil {
		p.logger.Debug("lifecycle event published", "exchange", p.exchange, "key", key, "tenant_id", event.TenantID)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

var _ core.LifecycleSink = (*Publisher)(nil)
