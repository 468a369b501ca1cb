package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel and returns a closer for its connection.  It
// gives up when ctx is done.
type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

// publishTimeout bounds one publish, dialing and the retry included.
const publishTimeout = 5 * time.Second

func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// The handshake must finish within ctx; amqp clears the
			// deadline once the connection is open.
			if deadline, ok := ctx.Deadline(); ok {
				if err := conn.SetDeadline(deadline); err != nil {
					_ = conn.Close()
					return nil, err
				}
			}
			return conn, nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher sends JSON events to durable queues.  It keeps one connection
// and re-dials after a failure.  Errors are logged and returned; callers
// treat them as non-fatal.
type Publisher struct {
	url      string
	dial     dialFunc
	observe  func(event string, err error)
	mu       sync.Mutex
	ch       channel
	closer   func() error
	declared map[string]bool
}

// NewPublisher returns a Publisher for the broker at url.  The connection
// is opened on the first publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dial: dialAMQP, declared: map[string]bool{}}
}

// OnPublish installs a hook called after every publish attempt.
func (p *Publisher) OnPublish(fn func(event string, err error)) { p.observe = fn }

// PublishOrderPlaced publishes ev to the order.placed queue.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error {
	return p.publish(ctx, OrderPlacedQueue, ev)
}

// PublishSeatExpired publishes ev to the seat.expired queue.
func (p *Publisher) PublishSeatExpired(ctx context.Context, ev SeatExpiredEvent) error {
	return p.publish(ctx, SeatExpiredQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) (err error) {
	defer func() {
		if p.observe != nil {
			p.observe(queue, err)
		}
	}()

	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("rabbitmq: marshal event failed", slog.String("queue", queue), slog.Any("error", err))
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	// One retry on a fresh connection covers a broker restart between
	// publishes.
	for attempt := 0; attempt < 2; attempt++ {
		if err = p.sendLocked(ctx, queue, msg); err == nil {
			return nil
		}
		p.resetLocked()
		if ctx.Err() != nil {
			break
		}
	}
	slog.Warn("rabbitmq: publish failed", slog.String("queue", queue), slog.Any("error", err))
	return err
}

func (p *Publisher) sendLocked(ctx context.Context, queue string, msg amqp.Publishing) error {
	if p.ch == nil {
		ch, closer, err := p.dial(ctx, p.url)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		p.ch, p.closer = ch, closer
	}
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare: %w", err)
		}
		p.declared[queue] = true
	}
	return p.ch.PublishWithContext(ctx, "", queue, false, false, msg)
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closer != nil {
		_ = p.closer()
	}
	p.ch, p.closer = nil, nil
	p.declared = map[string]bool{}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	if p.closer != nil {
		err = errors.Join(err, p.closer())
	}
	p.ch, p.closer = nil, nil
	p.declared = map[string]bool{}
	return err
}
