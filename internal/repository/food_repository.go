package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

const (
	foodInsert     = `INSERT INTO Food (FoodCode, FoodName, FoodPrice, ImageURL) VALUES (?, ?, ?, ?)`
	foodUpdate     = `UPDATE Food SET FoodName = ?, FoodPrice = ?, ImageURL = ? WHERE FoodCode = ?`
	foodDelete     = `DELETE FROM Food WHERE FoodCode = ?`
	foodCodeByName = `SELECT FoodCode FROM Food WHERE FoodName = ? LIMIT 1`
	foodSelectAll  = `SELECT FoodCode, FoodName, FoodPrice, ImageURL FROM Food ORDER BY FoodName`
	foodSelectCode = `SELECT FoodCode, FoodName, FoodPrice, ImageURL FROM Food WHERE FoodCode = ?`
	foodLockIn     = `SELECT FoodCode, FoodName, FoodPrice, ImageURL FROM Food WHERE FoodCode IN (`
)

// FoodRepo manages the food catalog.
type FoodRepo struct {
	db *sql.DB
}

// NewFoodRepo returns a FoodRepo bound to db.
func NewFoodRepo(db *sql.DB) *FoodRepo { return &FoodRepo{db: db} }

// Create inserts a catalog entry.  Duplicate codes or names are ErrIntegrity.
func (r *FoodRepo) Create(ctx context.Context, f model.Food) (err error) {
	defer track("food.create", time.Now(), &err)

	_, err = r.db.ExecContext(ctx, foodInsert, f.Code, f.Name, f.Price, f.ImageURL)
	return err
}

// Update replaces name, price and image of the entry with f.Code.
func (r *FoodRepo) Update(ctx context.Context, f model.Food) (err error) {
	defer track("food.update", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, foodUpdate, f.Name, f.Price, f.ImageURL, f.Code)
	if err != nil {
		return err
	}
	return affected(res, ErrFoodNotFound)
}

// Delete removes a catalog entry.  Entries with pending orders are kept and
// reported as ErrIntegrity.
func (r *FoodRepo) Delete(ctx context.Context, code string) (err error) {
	defer track("food.delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, foodDelete, code)
	if err != nil {
		return err
	}
	return affected(res, ErrFoodNotFound)
}

// CodeByName resolves a food name to its code.
func (r *FoodRepo) CodeByName(ctx context.Context, name string) (code string, err error) {
	defer track("food.code_by_name", time.Now(), &err)

	err = r.db.QueryRowContext(ctx, foodCodeByName, name).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFoodNotFound
	}
	return code, err
}

// Get fetches a catalog entry by code.
func (r *FoodRepo) Get(ctx context.Context, code string) (f *model.Food, err error) {
	defer track("food.get", time.Now(), &err)

	f = &model.Food{}
	err = r.db.QueryRowContext(ctx, foodSelectCode, code).Scan(&f.Code, &f.Name, &f.Price, &f.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFoodNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List returns the catalog ordered by name.
func (r *FoodRepo) List(ctx context.Context) (out []model.Food, err error) {
	defer track("food.list", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, foodSelectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.Food{}
	for rows.Next() {
		var f model.Food
		if err = rows.Scan(&f.Code, &f.Name, &f.Price, &f.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LockTx reads the catalog entries among codes inside tx and holds a shared
// lock on them until the transaction ends, so prices cannot change under a
// checkout.  Codes missing from the result do not exist.
func (r *FoodRepo) LockTx(ctx context.Context, tx *sql.Tx, codes []string) (map[string]model.Food, error) {
	found := make(map[string]model.Food, len(codes))
	if len(codes) == 0 {
		return found, nil
	}
	args := make([]interface{}, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	q := foodLockIn + strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",") + `) LOCK IN SHARE MODE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f model.Food
		if err := rows.Scan(&f.Code, &f.Name, &f.Price, &f.ImageURL); err != nil {
			return nil, err
		}
		found[f.Code] = f
	}
	return found, rows.Err()
}
