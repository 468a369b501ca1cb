// Package payment settles food orders placed from a seat.  A checkout is
// either confirmed, which records every ordered item in one transaction and
// notifies the kitchen, or cancelled, which removes the seat's pending
// orders.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/queue"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

// Method is how the member pays at the seat.
type Method string

const (
	Card  Method = "CARD"
	Payco Method = "PAYCO"
	Cash  Method = "CASH"
)

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case Card, Payco, Cash:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Result is the outcome code reported back to the seat terminal.
type Result int

const (
	Cancelled Result = 0
	Confirmed Result = 1
)

var (
	ErrEmptyOrder    = errors.New("order has no items")
	ErrUnknownMethod = errors.New("unknown payment method")
)

// Receipt summarizes a settled checkout.
type Receipt struct {
	Seat    int               `json:"seat"`
	Method  Method            `json:"method,omitempty"`
	Items   []queue.OrderItem `json:"items"`
	Total   int               `json:"total"`
	Result  Result            `json:"result"`
	Removed int64             `json:"removed,omitempty"`
}

type catalog interface {
	LockTx(ctx context.Context, tx *sql.Tx, codes []string) (map[string]model.Food, error)
}

type orderStore interface {
	AddTx(ctx context.Context, tx *sql.Tx, foodCode string, seat int) error
	CancelBySeat(ctx context.Context, seat int) (int64, error)
}

// Publisher delivers order events to the kitchen.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
}

// Service settles checkouts.
type Service struct {
	db     *sql.DB
	foods  catalog
	orders orderStore
	pub    Publisher
}

// NewService wires a Service.  pub may be nil when no broker is configured.
func NewService(db *sql.DB, foods catalog, orders orderStore, pub Publisher) *Service {
	return &Service{db: db, foods: foods, orders: orders, pub: pub}
}

// Checkout prices codes at their current catalog price and records one
// order per code for seat, all in one transaction.  An unknown code aborts
// the whole checkout with repository.ErrFoodNotFound.
func (s *Service) Checkout(ctx context.Context, memberID string, seat int, codes []string, method Method) (Receipt, error) {
	if len(codes) == 0 {
		return Receipt{}, ErrEmptyOrder
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return Receipt{}, err
	}

	items := make([]queue.OrderItem, 0, len(codes))
	err := repository.WithTx(ctx, s.db, "payment.checkout", func(tx *sql.Tx) error {
		found, err := s.foods.LockTx(ctx, tx, unique(codes))
		if err != nil {
			return err
		}
		for _, code := range codes {
			f, ok := found[code]
			if !ok {
				return fmt.Errorf("%w: %s", repository.ErrFoodNotFound, code)
			}
			if err := s.orders.AddTx(ctx, tx, code, seat); err != nil {
				return err
			}
			items = append(items, queue.OrderItem{Code: f.Code, Name: f.Name, Price: f.Price})
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	ev := queue.NewOrderPlacedEvent(seat, memberID, string(method), items)
	if s.pub != nil {
		if err := s.pub.PublishOrderPlaced(ctx, ev); err != nil {
			slog.Warn("order event not published", slog.Int("seat", seat), slog.String("event_id", ev.EventID), slog.Any("error", err))
		}
	}
	return Receipt{Seat: seat, Method: method, Items: items, Total: ev.Total, Result: Confirmed}, nil
}

// Cancel removes every pending order of seat.
func (s *Service) Cancel(ctx context.Context, seat int) (Receipt, error) {
	n, err := s.orders.CancelBySeat(ctx, seat)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Seat: seat, Items: []queue.OrderItem{}, Result: Cancelled, Removed: n}, nil
}

func unique(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
