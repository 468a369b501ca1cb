// Package queue defines the events exchanged over the message broker, the
// publisher used by the HTTP and session layers, and the kitchen consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys.  Each is also the name of a durable queue on the default
// exchange.
const (
	OrderPlacedQueue = "order.placed"
	SeatExpiredQueue = "seat.expired"
)

// OrderItem is one ordered food entry at the price charged.
type OrderItem struct {
	Code  string `json:"code"`
	Name  string `json:"name,omitempty"`
	Price int    `json:"price"`
}

// OrderPlacedEvent is published after a checkout commits.  It carries what
// the kitchen needs to prepare and deliver the order without querying the
// database.
type OrderPlacedEvent struct {
	EventID  string      `json:"event_id"`
	Seat     int         `json:"seat"`
	MemberID string      `json:"member_id"`
	Method   string      `json:"method"`
	Items    []OrderItem `json:"items"`
	Total    int         `json:"total"`
	PlacedAt string      `json:"placed_at"`
}

// NewOrderPlacedEvent stamps a fresh event ID and the current time.
func NewOrderPlacedEvent(seat int, memberID, method string, items []OrderItem) OrderPlacedEvent {
	total := 0
	for _, it := range items {
		total += it.Price
	}
	return OrderPlacedEvent{
		EventID:  uuid.NewString(),
		Seat:     seat,
		MemberID: memberID,
		Method:   method,
		Items:    items,
		Total:    total,
		PlacedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// SeatExpiredEvent is published when a member runs out of time and the seat
// is released.
type SeatExpiredEvent struct {
	EventID   string `json:"event_id"`
	Seat      int    `json:"seat"`
	MemberID  string `json:"member_id"`
	ExpiredAt string `json:"expired_at"`
}

// NewSeatExpiredEvent stamps a fresh event ID and the current time.
func NewSeatExpiredEvent(seat int, memberID string) SeatExpiredEvent {
	return SeatExpiredEvent{
		EventID:   uuid.NewString(),
		Seat:      seat,
		MemberID:  memberID,
		ExpiredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
