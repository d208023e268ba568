// Package events публикует доменные события в RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Event конверт события. Type используется как routing key.
type Event struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func encode(eventType string, payload any, at time.Time) ([]byte, error) {
	body, err := json.Marshal(Event{Type: eventType, Payload: payload, OccurredAt: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", eventType, err)
	}
	return body, nil
}

// AMQPPublisher публикует события в topic exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher подключается к брокеру и объявляет exchange
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish отправляет событие. Контекст не прерывает публикацию, библиотека его не поддерживает.
func (p *AMQPPublisher) Publish(_ context.Context, eventType string, payload any) error {
	body, err := encode(eventType, payload, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", eventType, err)
	}
	slog.Debug("event published", "type", eventType)
	return nil
}

// Close закрывает канал и соединение
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// LogPublisher пишет события в лог, когда брокер не настроен
type LogPublisher struct{}

// Publish логирует событие
func (LogPublisher) Publish(_ context.Context, eventType string, payload any) error {
	if _, err := encode(eventType, payload, time.Now()); err != nil {
		return err
	}
	slog.Info("event", "type", eventType, "payload", payload)
	return nil
}
