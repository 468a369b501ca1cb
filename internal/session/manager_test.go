package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/queue"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

// memStore keeps seats and member balances in memory.
type memStore struct {
	mu        sync.Mutex
	seats     map[int]model.Seat
	remaining map[string]int
	tickErr   map[int]error
	released  []int
	ticks     int
	failNext  int // Release calls that fail before one succeeds
}

func newMemStore(count int, balances map[string]int) *memStore {
	s := &memStore{seats: map[int]model.Seat{}, remaining: balances, tickErr: map[int]error{}}
	for i := 1; i <= count; i++ {
		s.seats[i] = model.Seat{Number: i}
	}
	return s
}

func (s *memStore) List(context.Context) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0, len(s.seats))
	for i := 1; i <= len(s.seats); i++ {
		out = append(out, s.seats[i])
	}
	return out, nil
}

func (s *memStore) occupy(n int, member string, usage int) error {
	seat, ok := s.seats[n]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if !seat.Free() && *seat.UserID != member {
		return repository.ErrSeatOccupied
	}
	s.seats[n] = model.Seat{Number: n, UserID: &member, UsageTime: &usage}
	return nil
}

func (s *memStore) Assign(_ context.Context, n int, member string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.remaining[member]
	if !ok {
		return 0, repository.ErrMemberNotFound
	}
	return r, s.occupy(n, member, r)
}

func (s *memStore) Reserve(_ context.Context, n int, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.remaining[member]; !ok {
		return repository.ErrMemberNotFound
	}
	return s.occupy(n, member, model.ReservedUsage)
}

func (s *memStore) Release(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return repository.ErrTransient
	}
	s.seats[n] = model.Seat{Number: n}
	s.released = append(s.released, n)
	return nil
}

func (s *memStore) Tick(_ context.Context, n int, member string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tickErr[n]; err != nil {
		return 0, err
	}
	r, ok := s.remaining[member]
	if !ok {
		return 0, repository.ErrMemberNotFound
	}
	s.ticks++
	if r > 0 {
		r--
	}
	s.remaining[member] = r
	s.seats[n] = model.Seat{Number: n, UserID: &member, UsageTime: &r}
	return r, nil
}

type recorder struct {
	mu       sync.Mutex
	commands map[int][]Command
	expired  []queue.SeatExpiredEvent
	occupied int
	ended    int
}

func newRecorder() *recorder { return &recorder{commands: map[int][]Command{}} }

func (r *recorder) Notify(seat int, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[seat] = append(r.commands[seat], msg.(Command))
	return nil
}

func (r *recorder) PublishSeatExpired(_ context.Context, ev queue.SeatExpiredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, ev)
	return nil
}

func (r *recorder) SetOccupiedSeats(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occupied = n
}

func (r *recorder) SessionExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
}

func newManager(t *testing.T, store *memStore) (*Manager, *recorder) {
	t.Helper()
	rec := newRecorder()
	m := NewManager(store, Options{Notifier: rec, Publisher: rec, Observer: rec, Workers: 2})
	require.NoError(t, m.Load(context.Background()))
	return m, rec
}

func TestActivate(t *testing.T) {
	store := newMemStore(3, map[string]int{"u1": 10, "u2": 5, "broke": 0})
	m, rec := newManager(t, store)
	ctx := context.Background()

	remaining, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
	assert.Equal(t, 1, rec.occupied)

	_, err = m.Activate(ctx, "u2", 1)
	assert.ErrorIs(t, err, repository.ErrSeatOccupied)
	assert.ErrorIs(t, err, repository.ErrConflict)

	again, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, again)

	_, err = m.Activate(ctx, "ghost", 2)
	assert.ErrorIs(t, err, repository.ErrMemberNotFound)

	_, err = m.Activate(ctx, "broke", 2)
	assert.ErrorIs(t, err, ErrNoTime)
	_, held := m.Occupant(2)
	assert.False(t, held)

	_, err = m.Activate(ctx, "u1", 99)
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func TestReserveThenActivate(t *testing.T) {
	store := newMemStore(2, map[string]int{"u1": 10, "u2": 10})
	m, _ := newManager(t, store)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "u1", 2))
	assert.True(t, m.Snapshot()[1].Reserved())

	assert.ErrorIs(t, m.Reserve(ctx, "u2", 2), repository.ErrSeatOccupied)
	_, err := m.Activate(ctx, "u2", 2)
	assert.ErrorIs(t, err, repository.ErrSeatOccupied)

	remaining, err := m.Activate(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
	assert.False(t, m.Snapshot()[1].Reserved())
}

func TestDeactivate_OnlyOccupant(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 10, "u2": 10})
	m, rec := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)

	err = m.Deactivate(ctx, "u2", 1)
	assert.ErrorIs(t, err, ErrNotOccupant)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	require.NoError(t, m.Deactivate(ctx, "u1", 1))
	_, held := m.Occupant(1)
	assert.False(t, held)
	assert.Equal(t, 0, rec.occupied)
	assert.Equal(t, []int{1}, store.released)
}

func TestTick_SpendsAndExpires(t *testing.T) {
	store := newMemStore(3, map[string]int{"u1": 3, "u2": 1, "u3": 10})
	m, rec := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.Activate(ctx, "u2", 2)
	require.NoError(t, err)
	require.NoError(t, m.Reserve(ctx, "u3", 3))

	expired, err := m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, 2, store.remaining["u1"])
	assert.Equal(t, 0, store.remaining["u2"])
	assert.Equal(t, 10, store.remaining["u3"], "reserved seats do not count down")

	require.Len(t, rec.commands[1], 1)
	assert.Equal(t, CommandTime, rec.commands[1][0].Command)
	assert.Equal(t, 2, *rec.commands[1][0].Remaining)

	require.Len(t, rec.commands[2], 1)
	assert.Equal(t, CommandLogout, rec.commands[2][0].Command)
	require.Len(t, rec.expired, 1)
	assert.Equal(t, 2, rec.expired[0].Seat)
	assert.Equal(t, "u2", rec.expired[0].MemberID)
	assert.Equal(t, 1, rec.ended)

	_, held := m.Occupant(2)
	assert.False(t, held)
	assert.Equal(t, 2, rec.occupied)
	assert.Empty(t, rec.commands[3])
}

func TestTick_FailureDoesNotStopOtherSeats(t *testing.T) {
	store := newMemStore(2, map[string]int{"u1": 5, "u2": 5})
	m, _ := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.Activate(ctx, "u2", 2)
	require.NoError(t, err)
	store.tickErr[1] = repository.ErrTransient

	_, err = m.Tick(ctx)
	assert.ErrorIs(t, err, repository.ErrTransient)
	assert.Equal(t, 5, store.remaining["u1"])
	assert.Equal(t, 4, store.remaining["u2"])
}

func TestTick_DeletedMemberIsDropped(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 5})
	m, _ := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	delete(store.remaining, "u1")

	_, err = m.Tick(ctx)
	require.NoError(t, err)
	_, held := m.Occupant(1)
	assert.False(t, held)
}

func TestLoad_RestoresOccupiedSeats(t *testing.T) {
	store := newMemStore(2, map[string]int{"u1": 7})
	member, usage := "u1", 7
	store.seats[2] = model.Seat{Number: 2, UserID: &member, UsageTime: &usage}

	m, rec := newManager(t, store)
	id, held := m.Occupant(2)
	assert.True(t, held)
	assert.Equal(t, "u1", id)
	assert.Equal(t, 1, rec.occupied)

	m.Forget("u1")
	_, held = m.Occupant(2)
	assert.False(t, held)
}

func TestManagerWithoutCollaborators(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 1})
	m := NewManager(store, Options{})
	require.NoError(t, m.Load(context.Background()))

	_, err := m.Activate(context.Background(), "u1", 1)
	require.NoError(t, err)
	expired, err := m.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.False(t, errors.Is(err, repository.ErrTransient))
}

func TestTick_RetriesFailedRelease(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 1})
	m, rec := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	store.failNext = 1

	expired, err := m.Tick(ctx)
	assert.ErrorIs(t, err, repository.ErrTransient)
	assert.Zero(t, expired)
	_, held := m.Occupant(1)
	assert.True(t, held)

	expired, err = m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	_, held = m.Occupant(1)
	assert.False(t, held)
	assert.Equal(t, 1, store.ticks, "an exhausted session is not charged again")
	assert.Equal(t, 0, store.remaining["u1"])
	assert.Len(t, rec.expired, 1)
}

func TestTick_ZeroBalanceExpiresWithoutSpending(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 5})
	m, rec := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	store.remaining["u1"] = 0
	m.Refresh("u1", 0)

	expired, err := m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Zero(t, store.ticks)
	assert.Equal(t, 0, store.remaining["u1"])
	require.Len(t, rec.commands[1], 1)
	assert.Equal(t, CommandLogout, rec.commands[1][0].Command)
}

func TestRefresh_UpdatesSnapshot(t *testing.T) {
	store := newMemStore(2, map[string]int{"u1": 5, "u2": 5})
	m, _ := newManager(t, store)
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)
	require.NoError(t, m.Reserve(ctx, "u2", 2))

	m.Refresh("u1", 120)
	m.Refresh("u2", 50)
	seats := m.Snapshot()
	assert.Equal(t, 120, *seats[0].UsageTime)
	assert.True(t, seats[1].Reserved(), "reservations keep their marker")
}

// slowPublisher blocks every publish until release is closed.
type slowPublisher struct {
	started chan struct{}
	release chan struct{}
}

func (p *slowPublisher) PublishSeatExpired(ctx context.Context, _ queue.SeatExpiredEvent) error {
	close(p.started)
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil
}

func TestTick_PublishDoesNotHoldSeat(t *testing.T) {
	store := newMemStore(1, map[string]int{"u1": 1, "u2": 10})
	pub := &slowPublisher{started: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, Options{Publisher: pub})
	require.NoError(t, m.Load(context.Background()))
	ctx := context.Background()

	_, err := m.Activate(ctx, "u1", 1)
	require.NoError(t, err)

	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		_, _ = m.Tick(ctx)
	}()
	<-pub.started

	activated := make(chan error, 1)
	go func() {
		_, err := m.Activate(ctx, "u2", 1)
		activated <- err
	}()
	select {
	case err := <-activated:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("seat stayed locked while the expiry was being published")
	}

	close(pub.release)
	<-ticked
}
