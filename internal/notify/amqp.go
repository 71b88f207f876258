// Package notify publishes run events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-report-pipeline/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Noop drops every event
type Noop struct{}

func (Noop) Publish(context.Context, model.RunEvent) error { return nil }

// channel is the part of *amqp.Channel the publisher uses
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends run events as persistent JSON messages to a durable
// queue.
type AMQPPublisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     channel
	queue  string
	logger *zap.Logger
}

// Dial connects to url, retrying while the broker comes up, and declares
// queue.
func Dial(ctx context.Context, url, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq not ready", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1+i)):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, queue, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{ch: ch, queue: queue, logger: logger}, nil
}

// Publish sends one event. The event type is used as message type.
func (p *AMQPPublisher) Publish(ctx context.Context, event model.RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Type,
		MessageId:    event.RunID,
		Timestamp:    event.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", event.Type), zap.String("run_id", event.RunID))
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
