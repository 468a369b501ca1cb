package repository

import (
	"context"
	"database/sql"
	"time"
)

// WithTx runs fn inside a transaction on db.  The transaction is committed
// when fn returns nil and rolled back on every other exit path, including a
// panic.  Errors are classified under op.
func WithTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) (err error) {
	defer track(op, time.Now(), &err)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// affected converts a zero RowsAffected count into notFound.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
