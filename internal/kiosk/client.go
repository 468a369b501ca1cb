package kiosk

import (
	"context"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/payment"
)

// Members is the member half of the façade used by the seat GUI.
type Members interface {
	VerifyCredentials(ctx context.Context, id, password string) (bool, error)
	IdentifierExists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, id, name, password, phone string) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	UpdateInfo(ctx context.Context, id, password, name, phone string) error
	RemainingTime(ctx context.Context, id string) (int, error)
	Ranking(ctx context.Context) ([]model.RankEntry, error)
}

// Foods lists the food catalog.
type Foods interface {
	List(ctx context.Context) ([]model.Food, error)
}

// Plans lists and sells time plans.
type Plans interface {
	List(ctx context.Context) ([]model.Plan, error)
	Purchase(ctx context.Context, memberID, key string, unitsPerHour int) (int, error)
}

// Payments settles food orders.
type Payments interface {
	Checkout(ctx context.Context, memberID string, seat int, codes []string, method payment.Method) (payment.Receipt, error)
	Cancel(ctx context.Context, seat int) (payment.Receipt, error)
}

// Client binds the façade to asynchronous calls.
type Client struct {
	Members  Members
	Foods    Foods
	Plans    Plans
	Payments Payments

	// UnitsPerHour converts purchased plan hours into balance units.
	UnitsPerHour int
}

type none = struct{}

// Login checks a member's credentials.
func (c *Client) Login(w *Window, id, password string) <-chan Result[bool] {
	return Go(w, func(ctx context.Context) (bool, error) {
		return c.Members.VerifyCredentials(ctx, id, password)
	})
}

// IDTaken reports whether id is already registered.
func (c *Client) IDTaken(w *Window, id string) <-chan Result[bool] {
	return Go(w, func(ctx context.Context) (bool, error) {
		return c.Members.IdentifierExists(ctx, id)
	})
}

// Register signs a new member up.
func (c *Client) Register(w *Window, id, name, password, phone string) <-chan Result[none] {
	return Go(w, func(ctx context.Context) (none, error) {
		return none{}, c.Members.Register(ctx, id, name, password, phone)
	})
}

// Member loads a member record.
func (c *Client) Member(w *Window, id string) <-chan Result[*model.Member] {
	return Go(w, func(ctx context.Context) (*model.Member, error) {
		return c.Members.GetByID(ctx, id)
	})
}

// UpdateInfo changes a member's password, name and phone.
func (c *Client) UpdateInfo(w *Window, id, password, name, phone string) <-chan Result[none] {
	return Go(w, func(ctx context.Context) (none, error) {
		return none{}, c.Members.UpdateInfo(ctx, id, password, name, phone)
	})
}

// RemainingTime reads a member's balance.
func (c *Client) RemainingTime(w *Window, id string) <-chan Result[int] {
	return Go(w, func(ctx context.Context) (int, error) {
		return c.Members.RemainingTime(ctx, id)
	})
}

// Ranking loads the usage ranking.
func (c *Client) Ranking(w *Window) <-chan Result[[]model.RankEntry] {
	return Go(w, c.Members.Ranking)
}

// FoodList loads the food catalog.
func (c *Client) FoodList(w *Window) <-chan Result[[]model.Food] {
	return Go(w, c.Foods.List)
}

// PlanList loads the time plans.
func (c *Client) PlanList(w *Window) <-chan Result[[]model.Plan] {
	return Go(w, c.Plans.List)
}

// Purchase buys plan key for memberID and returns the new balance.
func (c *Client) Purchase(w *Window, memberID, key string) <-chan Result[int] {
	return Go(w, func(ctx context.Context) (int, error) {
		return c.Plans.Purchase(ctx, memberID, key, c.UnitsPerHour)
	})
}

// Checkout pays for codes at seat.
func (c *Client) Checkout(w *Window, memberID string, seat int, codes []string, method payment.Method) <-chan Result[payment.Receipt] {
	return Go(w, func(ctx context.Context) (payment.Receipt, error) {
		return c.Payments.Checkout(ctx, memberID, seat, codes, method)
	})
}

// CancelOrders drops the pending orders of seat.
func (c *Client) CancelOrders(w *Window, seat int) <-chan Result[payment.Receipt] {
	return Go(w, func(ctx context.Context) (payment.Receipt, error) {
		return c.Payments.Cancel(ctx, seat)
	})
}
