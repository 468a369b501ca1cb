package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
)

const (
	seatSelectAll      = `SELECT SeatNumber, UserID, UsageTime FROM Seat ORDER BY SeatNumber`
	seatSelectByNumber = `SELECT SeatNumber, UserID, UsageTime FROM Seat WHERE SeatNumber = ?`
	seatLockOccupant   = `SELECT UserID FROM Seat WHERE SeatNumber = ? FOR UPDATE`
	seatLockMember     = `SELECT RemainingTime FROM Member WHERE ID = ? FOR UPDATE`
	seatSetOccupant    = `UPDATE Seat SET UserID = ?, UsageTime = ? WHERE SeatNumber = ?`
	seatRelease        = `UPDATE Seat SET UserID = NULL, UsageTime = NULL WHERE SeatNumber = ?`
	seatMirrorUsage    = `UPDATE Seat SET UsageTime = ? WHERE SeatNumber = ? AND UserID = ?`
	seatInsertIgnore   = `INSERT IGNORE INTO Seat (SeatNumber) VALUES `
)

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// List returns all seats ordered by number.
func (r *SeatRepo) List(ctx context.Context) (out []model.Seat, err error) {
	defer track("seat.list", time.Now(), &err)

	rows, err := r.db.QueryContext(ctx, seatSelectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []model.Seat{}
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get retrieves one seat by number.
func (r *SeatRepo) Get(ctx context.Context, number int) (s *model.Seat, err error) {
	defer track("seat.get", time.Now(), &err)

	seat, err := scanSeat(r.db.QueryRowContext(ctx, seatSelectByNumber, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// Assign seats memberID at number and copies the member's remaining time
// into the seat row.  Both rows are locked for the duration of the
// transaction.  A seat held by another member yields ErrSeatOccupied;
// assigning a member to their own seat again refreshes the mirrored time.
func (r *SeatRepo) Assign(ctx context.Context, number int, memberID string) (remaining int, err error) {
	err = WithTx(ctx, r.db, "seat.assign", func(tx *sql.Tx) error {
		var e error
		remaining, e = r.occupyTx(ctx, tx, number, memberID, false)
		return e
	})
	return remaining, err
}

// Reserve holds number for memberID without starting the clock.
func (r *SeatRepo) Reserve(ctx context.Context, number int, memberID string) error {
	return WithTx(ctx, r.db, "seat.reserve", func(tx *sql.Tx) error {
		_, e := r.occupyTx(ctx, tx, number, memberID, true)
		return e
	})
}

func (r *SeatRepo) occupyTx(ctx context.Context, tx *sql.Tx, number int, memberID string, reserve bool) (int, error) {
	var remaining int
	err := tx.QueryRowContext(ctx, seatLockMember, memberID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMemberNotFound
	}
	if err != nil {
		return 0, err
	}

	var occupant sql.NullString
	err = tx.QueryRowContext(ctx, seatLockOccupant, number).Scan(&occupant)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSeatNotFound
	}
	if err != nil {
		return 0, err
	}
	if occupant.Valid && occupant.String != "" && occupant.String != memberID {
		return 0, ErrSeatOccupied
	}

	usage := remaining
	if reserve {
		usage = model.ReservedUsage
	}
	if _, err := tx.ExecContext(ctx, seatSetOccupant, memberID, usage, number); err != nil {
		return 0, err
	}
	return remaining, nil
}

// Release frees a seat.
func (r *SeatRepo) Release(ctx context.Context, number int) (err error) {
	defer track("seat.release", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, seatRelease, number)
	if err != nil {
		return err
	}
	return affected(res, ErrSeatNotFound)
}

// Tick spends one time unit of memberID and mirrors the member's new
// remaining time into seat number, in one transaction.  It returns the
// remaining units after the spend.  A member whose balance is already
// exhausted is not charged and 0 is returned, so the seat never carries
// the reservation marker.
func (r *SeatRepo) Tick(ctx context.Context, number int, memberID string) (remaining int, err error) {
	err = WithTx(ctx, r.db, "seat.tick", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, memberSpendTime, memberID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, memberRemainingByID, memberID).Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		if remaining < 0 {
			remaining = 0
		}
		_, err = tx.ExecContext(ctx, seatMirrorUsage, remaining, number, memberID)
		return err
	})
	return remaining, err
}

// EnsureSeats creates seats 1..count that do not exist yet.
func (r *SeatRepo) EnsureSeats(ctx context.Context, count int) (created int64, err error) {
	defer track("seat.ensure", time.Now(), &err)

	if count <= 0 {
		return 0, nil
	}
	var b strings.Builder
	b.WriteString(seatInsertIgnore)
	args := make([]interface{}, 0, count)
	for i := 1; i <= count; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		b.WriteString("(?)")
		args = append(args, i)
	}
	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (model.Seat, error) {
	var (
		s     model.Seat
		user  sql.NullString
		usage sql.NullInt64
	)
	if err := row.Scan(&s.Number, &user, &usage); err != nil {
		return model.Seat{}, err
	}
	if user.Valid {
		u := user.String
		s.UserID = &u
	}
	if usage.Valid {
		n := int(usage.Int64)
		s.UsageTime = &n
	}
	return s, nil
}
