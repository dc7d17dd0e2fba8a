package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/bookwell/engine/internal/domain"
)

// Publisher delivers engine state transitions to the notification
// dispatcher and audit log. Fire-and-forget: implementations never block
// the state transition that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

const publishTimeout = 2 * time.Second

// RedisPublisher pushes events as JSON onto a Redis list consumed by the
// external dispatcher. A failed push is logged and dropped; the audit
// consumer reconciles gaps from storage.
type RedisPublisher struct {
	client *redis.Client
	queue  string
	log    logrus.FieldLogger
}

func NewRedisPublisher(client *redis.Client, queue string, log logrus.FieldLogger) *RedisPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisPublisher{
		client: client,
		queue:  queue,
		log:    log,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).WithField("event", ev.Name).Error("marshal event")
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.client.LPush(pushCtx, p.queue, payload).Err(); err != nil {
		p.log.WithError(err).WithField("event", ev.Name).Warn("publish event")
	}
}

// LogPublisher writes events to the log only, for deployments without Redis.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev domain.Event) {
	p.log.WithFields(logrus.Fields{
		"event":       ev.Name,
		"business_id": ev.BusinessID,
		"resource_id": ev.ResourceID,
		"hold_id":     ev.HoldID,
		"entry_id":    ev.EntryID,
		"booking_id":  ev.BookingID,
	}).Info("engine event")
}
