// Package session keeps the live seat table of the venue.  It mirrors the
// Seat rows in memory with one lock per seat, spends member time on every
// tick and ends sessions whose time has run out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/queue"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

var (
	ErrNoTime      = fmt.Errorf("no remaining time: %w", repository.ErrConflict)
	ErrNotOccupant = fmt.Errorf("seat held by another member: %w", repository.ErrForbidden)
)

// SeatStore is the persistence the manager drives.  repository.SeatRepo
// implements it.
type SeatStore interface {
	List(ctx context.Context) ([]model.Seat, error)
	Assign(ctx context.Context, number int, memberID string) (int, error)
	Reserve(ctx context.Context, number int, memberID string) error
	Release(ctx context.Context, number int) error
	Tick(ctx context.Context, number int, memberID string) (int, error)
}

// Notifier pushes a command to the terminal of a seat.
type Notifier interface {
	Notify(seat int, msg any) error
}

// ExpiryPublisher announces sessions that ended for lack of time.
type ExpiryPublisher interface {
	PublishSeatExpired(ctx context.Context, ev queue.SeatExpiredEvent) error
}

// Observer receives the manager's gauges.
type Observer interface {
	SetOccupiedSeats(n int)
	SessionExpired()
}

// Command is the JSON message sent to seat terminals.
type Command struct {
	Command   string `json:"command"`
	Remaining *int   `json:"remaining,omitempty"`
}

const (
	CommandLogout = "logout"
	CommandTime   = "time"
)

type seatState struct {
	mu        sync.Mutex
	member    string
	remaining int
	reserved  bool
}

func (s *seatState) clear() {
	s.member, s.remaining, s.reserved = "", 0, false
}

// Options are optional collaborators of a Manager.
type Options struct {
	Notifier  Notifier
	Publisher ExpiryPublisher
	Observer  Observer
	Workers   int // seats ticked in parallel, default 8
}

// Manager owns the in-memory seat table.
type Manager struct {
	store   SeatStore
	notify  Notifier
	pub     ExpiryPublisher
	obs     Observer
	workers int

	mu    sync.RWMutex
	seats map[int]*seatState
}

// NewManager returns an empty Manager.  Call Load before use.
func NewManager(store SeatStore, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Manager{
		store:   store,
		notify:  opts.Notifier,
		pub:     opts.Publisher,
		obs:     opts.Observer,
		workers: opts.Workers,
		seats:   map[int]*seatState{},
	}
}

// Load replaces the in-memory table with the Seat rows.
func (m *Manager) Load(ctx context.Context) error {
	rows, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	seats := make(map[int]*seatState, len(rows))
	for _, r := range rows {
		st := &seatState{}
		if !r.Free() {
			st.member = *r.UserID
			st.reserved = r.Reserved()
			if r.UsageTime != nil {
				st.remaining = *r.UsageTime
			}
		}
		seats[r.Number] = st
	}
	m.mu.Lock()
	m.seats = seats
	m.mu.Unlock()
	m.observe()
	slog.Info("seat table loaded", slog.Int("seats", len(seats)))
	return nil
}

func (m *Manager) seat(n int) (*seatState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.seats[n]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	return st, nil
}

// Activate starts memberID's session at seat and returns the member's
// remaining time.  The seat must be free or reserved by the same member.
// Members without remaining time are turned away with ErrNoTime.
func (m *Manager) Activate(ctx context.Context, memberID string, seat int) (int, error) {
	st, err := m.seat(seat)
	if err != nil {
		return 0, err
	}
	defer m.observe()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.member != "" && st.member != memberID {
		return 0, repository.ErrSeatOccupied
	}
	if st.member == memberID && !st.reserved {
		return st.remaining, nil
	}

	remaining, err := m.store.Assign(ctx, seat, memberID)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		if err := m.store.Release(ctx, seat); err != nil {
			return 0, err
		}
		st.clear()
		return 0, ErrNoTime
	}
	st.member, st.remaining, st.reserved = memberID, remaining, false
	slog.Info("seat activated", slog.Int("seat", seat), slog.String("member_id", memberID), slog.Int("remaining", remaining))
	return remaining, nil
}

// Reserve holds seat for memberID without starting the clock.
func (m *Manager) Reserve(ctx context.Context, memberID string, seat int) error {
	st, err := m.seat(seat)
	if err != nil {
		return err
	}
	defer m.observe()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.member != "" {
		if st.member == memberID && st.reserved {
			return nil
		}
		return repository.ErrSeatOccupied
	}
	if err := m.store.Reserve(ctx, seat, memberID); err != nil {
		return err
	}
	st.member, st.remaining, st.reserved = memberID, model.ReservedUsage, true
	slog.Info("seat reserved", slog.Int("seat", seat), slog.String("member_id", memberID))
	return nil
}

// Deactivate ends memberID's session or reservation at seat.  Only the
// occupying member may release a seat.
func (m *Manager) Deactivate(ctx context.Context, memberID string, seat int) error {
	st, err := m.seat(seat)
	if err != nil {
		return err
	}
	defer m.observe()
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.member != memberID {
		return ErrNotOccupant
	}
	if err := m.store.Release(ctx, seat); err != nil {
		return err
	}
	st.clear()
	slog.Info("seat deactivated", slog.Int("seat", seat), slog.String("member_id", memberID))
	return nil
}

// Forget drops memberID from every seat in memory.  The database already
// frees the seats when a member row is deleted.
func (m *Manager) Forget(memberID string) {
	m.mu.RLock()
	for _, st := range m.seats {
		st.mu.Lock()
		if st.member == memberID {
			st.clear()
		}
		st.mu.Unlock()
	}
	m.mu.RUnlock()
	m.observe()
}

// Tick spends one time unit for every running session, with at most
// Workers seats in flight.  A failing seat does not stop the others; the
// failures are returned joined.  It reports how many sessions expired.
func (m *Manager) Tick(ctx context.Context) (int, error) {
	m.mu.RLock()
	numbers := make([]int, 0, len(m.seats))
	for n := range m.seats {
		numbers = append(numbers, n)
	}
	m.mu.RUnlock()
	sort.Ints(numbers)

	var (
		mu      sync.Mutex
		errs    []error
		expired int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, n := range numbers {
		g.Go(func() error {
			done, err := m.tickSeat(gctx, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("seat %d: %w", n, err))
			}
			if done {
				expired++
			}
			return nil
		})
	}
	_ = g.Wait()
	m.observe()
	return expired, errors.Join(errs...)
}

func (m *Manager) tickSeat(ctx context.Context, n int) (bool, error) {
	member, expired, err := m.spendSeat(ctx, n)
	if err != nil || !expired {
		return false, err
	}
	if m.obs != nil {
		m.obs.SessionExpired()
	}
	if m.pub != nil {
		if err := m.pub.PublishSeatExpired(ctx, queue.NewSeatExpiredEvent(n, member)); err != nil {
			slog.Warn("seat expiry not published", slog.Int("seat", n), slog.Any("error", err))
		}
	}
	slog.Info("seat session expired", slog.Int("seat", n), slog.String("member_id", member))
	return true, nil
}

// spendSeat charges one unit for the session at seat n under the seat lock
// and releases the seat once nothing is left.  A session that already
// reached zero is not charged again; only its release is retried.
func (m *Manager) spendSeat(ctx context.Context, n int) (member string, expired bool, err error) {
	st, err := m.seat(n)
	if err != nil {
		return "", false, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.member == "" || st.reserved {
		return "", false, nil
	}
	member = st.member

	if st.remaining > 0 {
		remaining, err := m.store.Tick(ctx, n, member)
		if errors.Is(err, repository.ErrMemberNotFound) {
			st.clear()
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		st.remaining = remaining
		if remaining > 0 {
			m.send(n, Command{Command: CommandTime, Remaining: &remaining})
			return "", false, nil
		}
	}

	m.send(n, Command{Command: CommandLogout})
	if err := m.store.Release(ctx, n); err != nil {
		return "", false, err
	}
	st.clear()
	return member, true, nil
}

// Refresh sets the live balance of every running session of memberID to
// remaining, after the balance was changed outside a tick.
func (m *Manager) Refresh(memberID string, remaining int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.seats {
		st.mu.Lock()
		if st.member == memberID && !st.reserved {
			st.remaining = remaining
		}
		st.mu.Unlock()
	}
}

func (m *Manager) send(seat int, cmd Command) {
	if m.notify == nil {
		return
	}
	if err := m.notify.Notify(seat, cmd); err != nil {
		slog.Debug("seat terminal not notified", slog.Int("seat", seat), slog.String("command", cmd.Command), slog.Any("error", err))
	}
}

// Run ticks every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := m.Tick(ctx); err != nil {
				slog.Error("seat tick failed", slog.Any("error", err), slog.Int("expired", n))
			}
		}
	}
}

// Snapshot returns the seat table ordered by number.
func (m *Manager) Snapshot() []model.Seat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Seat, 0, len(m.seats))
	for n, st := range m.seats {
		st.mu.Lock()
		s := model.Seat{Number: n}
		if st.member != "" {
			member, remaining := st.member, st.remaining
			s.UserID, s.UsageTime = &member, &remaining
		}
		st.mu.Unlock()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Occupant returns the member at seat, if any.
func (m *Manager) Occupant(seat int) (string, bool) {
	st, err := m.seat(seat)
	if err != nil {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.member, st.member != ""
}

func (m *Manager) occupied() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, st := range m.seats {
		st.mu.Lock()
		if st.member != "" {
			n++
		}
		st.mu.Unlock()
	}
	return n
}

func (m *Manager) observe() {
	if m.obs != nil {
		m.obs.SetOccupiedSeats(m.occupied())
	}
}
