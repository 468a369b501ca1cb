package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/utils"
)

const (
	memberPasswordByID = `SELECT Password FROM Member WHERE ID = ? LIMIT 1`
	memberCountByID    = `SELECT COUNT(*) FROM Member WHERE ID = ?`
	memberInsert       = `INSERT INTO Member (ID, Username, Password, PhoneNumber) VALUES (?, ?, ?, ?)`
	memberSelectByID   = `SELECT ID, Username, Password, PhoneNumber, RemainingTime, UsageTime, LoginType, IsAdmin
	                      FROM Member WHERE ID = ? LIMIT 1`
	memberSelectAll = `SELECT ID, Username, Password, PhoneNumber, RemainingTime, UsageTime, LoginType, IsAdmin
	                   FROM Member ORDER BY ID`
	memberDelete        = `DELETE FROM Member WHERE ID = ?`
	memberUpdateInfo    = `UPDATE Member SET Password = ?, Username = ?, PhoneNumber = ? WHERE ID = ?`
	memberRemainingByID = `SELECT RemainingTime FROM Member WHERE ID = ?`
	memberSetRemaining  = `UPDATE Member SET RemainingTime = ? WHERE ID = ?`
	memberSpendTime     = `UPDATE Member SET UsageTime = UsageTime + 1, RemainingTime = RemainingTime - 1 WHERE ID = ? AND RemainingTime > 0`
	memberRanking       = `SELECT ID, Username, UsageTime FROM Member ORDER BY UsageTime DESC, ID ASC`
)

// MemberRepo provides the member half of the façade.
type MemberRepo struct {
	db   *sql.DB
	cost int
}

// NewMemberRepo binds a MemberRepo to db.  cost is the bcrypt cost used
// when storing passwords.
func NewMemberRepo(db *sql.DB, cost int) *MemberRepo { return &MemberRepo{db: db, cost: cost} }

// VerifyCredentials reports whether id exists and password matches the
// stored hash.  An unknown id and a wrong password both yield false with a
// nil error; only infrastructure failures return an error.
func (r *MemberRepo) VerifyCredentials(ctx context.Context, id, password string) (ok bool, err error) {
	defer track("member.verify_credentials", time.Now(), &err)

	var hash string
	err = r.db.QueryRowContext(ctx, memberPasswordByID, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return utils.VerifyPassword(hash, password), nil
}

// IdentifierExists reports whether a member with id is registered.
func (r *MemberRepo) IdentifierExists(ctx context.Context, id string) (exists bool, err error) {
	defer track("member.identifier_exists", time.Now(), &err)

	var n int
	if err = r.db.QueryRowContext(ctx, memberCountByID, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Register inserts a new member.  A taken id is reported as ErrIntegrity by
// the primary key, which closes the gap between IdentifierExists and the
// insert.
func (r *MemberRepo) Register(ctx context.Context, id, name, password, phone string) (err error) {
	defer track("member.register", time.Now(), &err)

	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, memberInsert, id, name, hash, phone)
	return err
}

// GetByID fetches a member.  A missing row is ErrMemberNotFound.
func (r *MemberRepo) GetByID(ctx context.Context, id string) (m *model.Member, err error) {
	defer track("member.get", time.Now(), &err)

	m = &model.Member{}
	err = r.db.QueryRowContext(ctx, memberSelectByID, id).Scan(
		&m.ID, &m.Username, &m.Password, &m.PhoneNumber,
		&m.RemainingTime, &m.UsageTime, &m.LoginType, &m.IsAdmin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a member.  Seats held by the member are freed by the
// foreign key.
func (r *MemberRepo) Delete(ctx context.Context, id string) (err error) {
	defer track("member.delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, memberDelete, id)
	if err != nil {
		return err
	}
	return affected(res, ErrMemberNotFound)
}

// UpdateInfo replaces the password, display name and phone number.
func (r *MemberRepo) UpdateInfo(ctx context.Context, id, password, name, phone string) (err error) {
	defer track("member.update_info", time.Now(), &err)

	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, memberUpdateInfo, hash, name, phone, id)
	if err != nil {
		return err
	}
	return affected(res, ErrMemberNotFound)
}

// RemainingTime returns the member's unconsumed time units.
func (r *MemberRepo) RemainingTime(ctx context.Context, id string) (units int, err error) {
	defer track("member.remaining_time", time.Now(), &err)

	err = r.db.QueryRowContext(ctx, memberRemainingByID, id).Scan(&units)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMemberNotFound
	}
	return units, err
}

// SetRemainingTime overwrites the member's remaining time units.
func (r *MemberRepo) SetRemainingTime(ctx context.Context, id string, units int) (err error) {
	defer track("member.set_remaining_time", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, memberSetRemaining, units, id)
	if err != nil {
		return err
	}
	return affected(res, ErrMemberNotFound)
}

// SpendTime moves one unit from remaining to used in a single statement, so
// concurrent spends and reads never observe a half-applied change.  The
// balance never drops below zero: a member with nothing left gets
// ErrTimeExhausted.
func (r *MemberRepo) SpendTime(ctx context.Context, id string) (err error) {
	defer track("member.spend_time", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, memberSpendTime, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var left int
	err = r.db.QueryRowContext(ctx, memberRemainingByID, id).Scan(&left)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMemberNotFound
	}
	if err != nil {
		return err
	}
	return ErrTimeExhausted
}

// Ranking lists members by used time, most first.  Ties are ordered by id.
func (r *MemberRepo) Ranking(ctx context.Context) (out []model.RankEntry, err error) {
	defer track("member.ranking", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, memberRanking)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.RankEntry{}
	for rows.Next() {
		var e model.RankEntry
		if err = rows.Scan(&e.ID, &e.Name, &e.UsedTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every member record.
func (r *MemberRepo) List(ctx context.Context) (out []model.Member, err error) {
	defer track("member.list", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, memberSelectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.Member{}
	for rows.Next() {
		var m model.Member
		if err = rows.Scan(
			&m.ID, &m.Username, &m.Password, &m.PhoneNumber,
			&m.RemainingTime, &m.UsageTime, &m.LoginType, &m.IsAdmin,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
