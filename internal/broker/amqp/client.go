// Package amqp implements the relay broker interfaces on an AMQP 0-9-1
// connection with publisher confirms.
package amqp

import (
	"context"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"geyserRelay/internal/relay"
)

// Dialer opens AMQP sessions for the publisher loop.
type Dialer struct{}

// Dial connects to the broker, opens a channel, and enables publisher
// confirms on it.
func (Dialer) Dial(_ context.Context, url string) (relay.Session, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &session{conn: conn, ch: ch}, nil
}

type session struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func (s *session) DeclareQueue(_ context.Context, name string) error {
	_, err := s.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	return nil
}

func (s *session) Publish(ctx context.Context, queue string, body []byte) (bool, error) {
	confirm, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	if err != nil {
		return false, fmt.Errorf("publish to %q: %w", queue, err)
	}
	return confirm.WaitContext(ctx)
}

func (s *session) Close() error {
	if err := s.conn.Close(); err != nil && err != amqp091.ErrClosed {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
