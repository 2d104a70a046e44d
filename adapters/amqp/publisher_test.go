package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-provisioning/core"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed int
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

func TestPublisher_PublishesJSONEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	publisher, err := NewPublisher(func() (Channel, error) { return ch, nil }, WithExchange("ghl.events"))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = publisher.Publish(context.Background(), core.LifecycleEvent{
		Action:     core.LifecycleActionInstalled,
		TenantID:   "loc_1",
		TenantType: core.TenantTypeLocation,
		CompanyID:  "cmp_1",
		LocationID: "loc_1",
		WebhookID:  "wh_1",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 || ch.closed != 1 {
		t.Fatalf("expected one publish on a closed channel, got %d sent %d closed", len(ch.sent), ch.closed)
	}
	sent := ch.sent[0]
	if sent.exchange != "ghl.events" || sent.key != "provisioning.installed" {
		t.Fatalf("unexpected routing %q %q", sent.exchange, sent.key)
	}
	if sent.msg.CorrelationId != "wh_1" || sent.msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("unexpected publishing headers %#v", sent.msg)
	}

	var envelope Envelope
	if err := json.Unmarshal(sent.msg.Body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.TenantID != "loc_1" || envelope.Action != "installed" || !envelope.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
	if envelope.ID == "" || envelope.ID != sent.msg.MessageId {
		t.Fatalf("expected message id to match envelope id")
	}
}

func TestPublisher_Errors(t *testing.T) {
	if _, err := NewPublisher(nil); err == nil {
		t.Fatalf("expected opener required")
	}

	openErr := errors.New("connection closed")
	publisher, _ := NewPublisher(func() (Channel, error) { return nil, openErr })
	if err := publisher.Publish(context.Background(), core.LifecycleEvent{Action: core.LifecycleActionUninstalled}); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}

	ch := &fakeChannel{err: errors.New("nack")}
	publisher, _ = NewPublisher(func() (Channel, error) { return ch, nil })
	if err := publisher.Publish(context.Background(), core.LifecycleEvent{Action: core.LifecycleActionInstallFailed}); err == nil {
		t.Fatalf("expected publish error")
	}
	if ch.closed != 1 {
		t.Fatalf("expected channel closed after failed publish")
	}

	if err := publisher.Publish(context.Background(), core.LifecycleEvent{}); err == nil {
		t.Fatalf("expected missing action error")
	}
}
