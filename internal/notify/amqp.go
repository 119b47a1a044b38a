package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the fanout exchange events are mirrored to.
const DefaultExchange = "kitchen.events"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPMirror publishes every event to a fanout exchange so reporting
// consumers can follow the game without touching the database.
type AMQPMirror struct {
	conn     *amqp.Connection
	pub      publisher
	exchange string
	lg       *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// DialAMQP connects to the broker and declares the durable fanout exchange.
func DialAMQP(url, exchange string, lg *zap.Logger) (*AMQPMirror, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}

	m := newAMQPMirror(ch, exchange, lg)
	m.conn = conn
	return m, nil
}

func newAMQPMirror(pub publisher, exchange string, lg *zap.Logger) *AMQPMirror {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &AMQPMirror{pub: pub, exchange: exchange, lg: lg, now: time.Now}
}

// Notify implements Notifier. Publish failures are logged, never returned.
func (m *AMQPMirror) Notify(ctx context.Context, playerID string, ev Event) {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.now(),
		Type:         string(ev.Type()),
		Headers:      amqp.Table{"player_id": playerID},
		Body:         Encode(ev),
	}

	m.mu.Lock()
	err := m.pub.PublishWithContext(ctx, m.exchange, "", false, false, msg)
	m.mu.Unlock()

	if err != nil {
		m.lg.Warn("Mirror publish failed",
			zap.String("player_id", playerID),
			zap.String("event", string(ev.Type())),
			zap.Error(err),
		)
	}
}

// Ping reports whether the broker connection is open.
func (m *AMQPMirror) Ping(context.Context) error {
	if m.conn == nil || m.conn.IsClosed() {
		return errors.New("amqp connection is closed")
	}
	return nil
}

// Close closes the broker connection.
func (m *AMQPMirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}
