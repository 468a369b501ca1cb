package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

const (
	planUpsert = `INSERT INTO Subscription (SubscriptionKey, SubscriptionAmount, SubscriptionHours) VALUES (?, ?, ?)
	              ON DUPLICATE KEY UPDATE SubscriptionAmount = VALUES(SubscriptionAmount), SubscriptionHours = VALUES(SubscriptionHours)`
	planDelete    = `DELETE FROM Subscription WHERE SubscriptionKey = ?`
	planSelectAll = `SELECT SubscriptionKey, SubscriptionAmount, SubscriptionHours FROM Subscription ORDER BY SubscriptionHours, SubscriptionKey`
	planSelectKey = `SELECT SubscriptionKey, SubscriptionAmount, SubscriptionHours FROM Subscription WHERE SubscriptionKey = ?`
	planHoursKey  = `SELECT SubscriptionHours FROM Subscription WHERE SubscriptionKey = ?`
	memberCredit  = `UPDATE Member SET RemainingTime = RemainingTime + ? WHERE ID = ?`
)

// PlanRepo manages the priced time bundles of the Subscription table.
type PlanRepo struct {
	db *sql.DB
}

// NewPlanRepo returns a PlanRepo bound to db.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

// Upsert creates the plan or replaces its price and hours.
func (r *PlanRepo) Upsert(ctx context.Context, p model.Plan) (err error) {
	defer track("plan.upsert", time.Now(), &err)

	_, err = r.db.ExecContext(ctx, planUpsert, p.Key, p.Amount, p.Hours)
	return err
}

// Delete removes a plan.
func (r *PlanRepo) Delete(ctx context.Context, key string) (err error) {
	defer track("plan.delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, planDelete, key)
	if err != nil {
		return err
	}
	return affected(res, ErrPlanNotFound)
}

// Get fetches one plan.
func (r *PlanRepo) Get(ctx context.Context, key string) (p *model.Plan, err error) {
	defer track("plan.get", time.Now(), &err)

	p = &model.Plan{}
	err = r.db.QueryRowContext(ctx, planSelectKey, key).Scan(&p.Key, &p.Amount, &p.Hours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all plans, shortest first.
func (r *PlanRepo) List(ctx context.Context) (out []model.Plan, err error) {
	defer track("plan.list", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, planSelectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.Plan{}
	for rows.Next() {
		var p model.Plan
		if err = rows.Scan(&p.Key, &p.Amount, &p.Hours); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Purchase credits memberID with the hours of plan key, converted at
// unitsPerHour, and returns the member's new remaining time.
func (r *PlanRepo) Purchase(ctx context.Context, memberID, key string, unitsPerHour int) (remaining int, err error) {
	err = WithTx(ctx, r.db, "plan.purchase", func(tx *sql.Tx) error {
		var hours int
		err := tx.QueryRowContext(ctx, planHoursKey, key).Scan(&hours)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlanNotFound
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, memberCredit, hours*unitsPerHour, memberID)
		if err != nil {
			return err
		}
		if err := affected(res, ErrMemberNotFound); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, memberRemainingByID, memberID).Scan(&remaining)
	})
	return remaining, err
}
