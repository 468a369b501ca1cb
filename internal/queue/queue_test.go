package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  error
	closed    bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func TestNewOrderPlacedEvent(t *testing.T) {
	ev := NewOrderPlacedEvent(3, "u1", "CARD", []OrderItem{{Code: "F1", Price: 3500}, {Code: "F2", Price: 1500}})

	_, err := uuid.Parse(ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, 5000, ev.Total)
	assert.NotEmpty(t, ev.PlacedAt)
}

func TestPublisher_DeclaresOnceAndPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	dials := 0
	p := NewPublisher("amqp://test")
	p.dial = func(context.Context, string) (channel, func() error, error) {
		dials++
		return ch, func() error { return nil }, nil
	}
	var observed []string
	p.OnPublish(func(event string, err error) {
		if err == nil {
			observed = append(observed, event)
		}
	})

	ctx := context.Background()
	require.NoError(t, p.PublishOrderPlaced(ctx, NewOrderPlacedEvent(1, "u1", "CASH", []OrderItem{{Code: "F1", Price: 10}})))
	require.NoError(t, p.PublishOrderPlaced(ctx, NewOrderPlacedEvent(2, "u2", "CASH", []OrderItem{{Code: "F1", Price: 10}})))
	require.NoError(t, p.PublishSeatExpired(ctx, NewSeatExpiredEvent(4, "u3")))

	assert.Equal(t, 1, dials)
	assert.Equal(t, []string{OrderPlacedQueue, SeatExpiredQueue}, ch.declared)
	assert.Equal(t, []string{OrderPlacedQueue, OrderPlacedQueue, SeatExpiredQueue}, ch.keys)
	assert.Equal(t, []string{OrderPlacedQueue, OrderPlacedQueue, SeatExpiredQueue}, observed)

	msg := ch.published[2]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	var ev SeatExpiredEvent
	require.NoError(t, json.Unmarshal(msg.Body, &ev))
	assert.Equal(t, 4, ev.Seat)
	assert.Equal(t, "u3", ev.MemberID)
}

func TestPublisher_RedialsAfterFailure(t *testing.T) {
	first := &fakeChannel{failNext: amqp.ErrClosed}
	second := &fakeChannel{}
	chans := []*fakeChannel{first, second}
	p := NewPublisher("amqp://test")
	p.dial = func(context.Context, string) (channel, func() error, error) {
		ch := chans[0]
		chans = chans[1:]
		return ch, func() error { return nil }, nil
	}

	require.NoError(t, p.PublishSeatExpired(context.Background(), NewSeatExpiredEvent(1, "u1")))
	assert.True(t, first.closed)
	assert.Len(t, second.published, 1)
}

func TestPublisher_DialFailureIsReturned(t *testing.T) {
	p := NewPublisher("amqp://test")
	p.dial = func(context.Context, string) (channel, func() error, error) { return nil, nil, errors.New("connection refused") }

	err := p.PublishSeatExpired(context.Background(), NewSeatExpiredEvent(1, "u1"))
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, p.Close())
}

func TestPublisher_DialStopsWithContext(t *testing.T) {
	dials := 0
	p := NewPublisher("amqp://test")
	p.dial = func(ctx context.Context, _ string) (channel, func() error, error) {
		dials++
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.PublishOrderPlaced(ctx, NewOrderPlacedEvent(1, "u1", "CARD", []OrderItem{{Code: "F1", Price: 10}}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, dials, "no retry once the caller has given up")
}

func TestPublisher_DialIsBoundedWithoutCallerDeadline(t *testing.T) {
	p := NewPublisher("amqp://test")
	p.dial = func(ctx context.Context, _ string) (channel, func() error, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(publishTimeout), deadline, time.Second)
		return nil, nil, errors.New("connection refused")
	}

	err := p.PublishSeatExpired(context.Background(), NewSeatExpiredEvent(1, "u1"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestHandleOrderPlaced_AppendsKitchenLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kitchen.log")
	ev := NewOrderPlacedEvent(7, "u1", "PAYCO", []OrderItem{{Code: "F1", Name: "Ramen", Price: 3500}, {Code: "F2", Price: 1500}})
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handleOrderPlaced(body, path))
	require.NoError(t, handleOrderPlaced(body, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*len(kitchenLine(ev)), len(b))
	assert.Contains(t, string(b), "seat=7 | member=u1 | method=PAYCO | total=5000 | items=[Ramen,F2]")
}

func TestHandleOrderPlaced_RejectsBadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen.log")

	assert.Error(t, handleOrderPlaced([]byte("{"), path))
	assert.Error(t, handleOrderPlaced([]byte(`{"seat":0,"items":[]}`), path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
