package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartKitchenConsumer connects to RabbitMQ, declares the order.placed queue
// (durable) and appends one line per order to logPath.  It reconnects with
// backoff until ctx is cancelled.  Messages that cannot be handled are
// rejected without requeue so a bad payload cannot loop.
func StartKitchenConsumer(ctx context.Context, url, logPath string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("kitchen-consumer: dial failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("kitchen-consumer: consume loop ended, reconnecting", slog.Any("error", err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("kitchen-consumer: set QoS failed", slog.Any("error", err))
	}
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, OrderPlacedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleOrderPlaced(d.Body, logPath); err != nil {
			slog.Error("kitchen-consumer: handle message failed", slog.Any("error", err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleOrderPlaced(body []byte, logPath string) error {
	var ev OrderPlacedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Seat <= 0 || len(ev.Items) == 0 {
		return fmt.Errorf("order event %s: missing seat or items", ev.EventID)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(kitchenLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func kitchenLine(ev OrderPlacedEvent) string {
	names := make([]string, 0, len(ev.Items))
	for _, it := range ev.Items {
		name := it.Name
		if name == "" {
			name = it.Code
		}
		names = append(names, name)
	}
	return fmt.Sprintf("[%s] Order placed | event_id=%s | seat=%d | member=%s | method=%s | total=%d | items=[%s]\n",
		ev.PlacedAt, ev.EventID, ev.Seat, ev.MemberID, ev.Method, ev.Total, strings.Join(names, ","))
}
