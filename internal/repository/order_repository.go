package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

const (
	orderInsert       = `INSERT INTO OrderTable (FoodCode, OrderSeat) VALUES (?, ?)`
	orderDeleteBySeat = `DELETE FROM OrderTable WHERE OrderSeat = ?`
	orderListBySeat   = `SELECT o.FoodCode, f.FoodName, f.FoodPrice, o.OrderSeat
	                     FROM OrderTable o
	                     JOIN Food f ON f.FoodCode = o.FoodCode
	                     WHERE o.OrderSeat = ?
	                     ORDER BY f.FoodName`
)

// OrderRepo records food orders against seats.  Order rows carry no
// identity, so cancellation always covers every order of a seat.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to db.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Add records one order of foodCode for seat.  An unknown code is
// ErrIntegrity.
func (r *OrderRepo) Add(ctx context.Context, foodCode string, seat int) (err error) {
	defer track("order.add", time.Now(), &err)

	_, err = r.db.ExecContext(ctx, orderInsert, foodCode, seat)
	return err
}

// AddTx is Add inside a caller-owned transaction.
func (r *OrderRepo) AddTx(ctx context.Context, tx *sql.Tx, foodCode string, seat int) error {
	_, err := tx.ExecContext(ctx, orderInsert, foodCode, seat)
	return err
}

// CancelBySeat deletes every order of seat and leaves other seats alone.
// It returns the number of rows removed; zero is not an error.
func (r *OrderRepo) CancelBySeat(ctx context.Context, seat int) (n int64, err error) {
	defer track("order.cancel_by_seat", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, orderDeleteBySeat, seat)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBySeat returns the pending orders of seat with their catalog data.
func (r *OrderRepo) ListBySeat(ctx context.Context, seat int) (out []model.Order, err error) {
	defer track("order.list_by_seat", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, orderListBySeat, seat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.Order{}
	for rows.Next() {
		var o model.Order
		if err = rows.Scan(&o.FoodCode, &o.FoodName, &o.Price, &o.Seat); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
