package kiosk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pcbang-kiosk/internal/model"
	"github.com/iliyamo/pcbang-kiosk/internal/payment"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

func recv[T any](t *testing.T, ch <-chan Result[T]) Result[T] {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
	return Result[T]{}
}

func TestGo_DeliversValue(t *testing.T) {
	w := NewWindow(context.Background(), 0)
	defer w.Close()

	r := recv(t, Go(w, func(context.Context) (int, error) { return 42, nil }))
	require.NoError(t, r.Err)
	assert.Equal(t, 42, r.Value)
}

func TestGo_DeliversError(t *testing.T) {
	w := NewWindow(context.Background(), 0)
	defer w.Close()

	boom := errors.New("boom")
	r := recv(t, Go(w, func(context.Context) (string, error) { return "", boom }))
	assert.ErrorIs(t, r.Err, boom)
}

func TestWindow_CloseCancelsPending(t *testing.T) {
	w := NewWindow(context.Background(), 0)
	started := make(chan struct{})
	ch := Go(w, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	w.Close()

	r := recv(t, ch)
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestWindow_GoAfterClose(t *testing.T) {
	w := NewWindow(context.Background(), 0)
	w.Close()

	called := false
	r := recv(t, Go(w, func(context.Context) (int, error) {
		called = true
		return 1, nil
	}))
	assert.ErrorIs(t, r.Err, ErrWindowClosed)
	assert.False(t, called)
}

func TestWindow_CallTimeout(t *testing.T) {
	w := NewWindow(context.Background(), 20*time.Millisecond)
	defer w.Close()

	r := recv(t, Go(w, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}))
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
}

type fakeMembers struct {
	members map[string]*model.Member
}

func (f *fakeMembers) VerifyCredentials(_ context.Context, id, password string) (bool, error) {
	m, ok := f.members[id]
	return ok && m.Password == password, nil
}

func (f *fakeMembers) IdentifierExists(_ context.Context, id string) (bool, error) {
	_, ok := f.members[id]
	return ok, nil
}

func (f *fakeMembers) Register(_ context.Context, id, name, password, phone string) error {
	if _, ok := f.members[id]; ok {
		return repository.ErrIntegrity
	}
	f.members[id] = &model.Member{ID: id, Username: name, Password: password, PhoneNumber: phone}
	return nil
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*model.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeMembers) UpdateInfo(_ context.Context, id, password, name, phone string) error {
	m, ok := f.members[id]
	if !ok {
		return repository.ErrMemberNotFound
	}
	m.Password, m.Username, m.PhoneNumber = password, name, phone
	return nil
}

func (f *fakeMembers) RemainingTime(_ context.Context, id string) (int, error) {
	m, ok := f.members[id]
	if !ok {
		return 0, repository.ErrMemberNotFound
	}
	return m.RemainingTime, nil
}

func (f *fakeMembers) Ranking(context.Context) ([]model.RankEntry, error) {
	return []model.RankEntry{{ID: "u1", Name: "kim", UsedTime: 9}}, nil
}

type fakePlans struct {
	gotUnits int
}

func (f *fakePlans) List(context.Context) ([]model.Plan, error) {
	return []model.Plan{{Key: "H1", Amount: 1000, Hours: 1}}, nil
}

func (f *fakePlans) Purchase(_ context.Context, _, _ string, unitsPerHour int) (int, error) {
	f.gotUnits = unitsPerHour
	return unitsPerHour, nil
}

type fakePayments struct{}

func (fakePayments) Checkout(_ context.Context, _ string, seat int, codes []string, method payment.Method) (payment.Receipt, error) {
	return payment.Receipt{Seat: seat, Method: method, Result: payment.Confirmed, Total: 1000 * len(codes)}, nil
}

func (fakePayments) Cancel(_ context.Context, seat int) (payment.Receipt, error) {
	return payment.Receipt{Seat: seat, Result: payment.Cancelled}, nil
}

func TestClient_MemberFlow(t *testing.T) {
	c := &Client{Members: &fakeMembers{members: map[string]*model.Member{}}}
	w := NewWindow(context.Background(), time.Second)
	defer w.Close()

	taken := recv(t, c.IDTaken(w, "u1"))
	require.NoError(t, taken.Err)
	assert.False(t, taken.Value)

	require.NoError(t, recv(t, c.Register(w, "u1", "kim", "pw", "010")).Err)
	assert.ErrorIs(t, recv(t, c.Register(w, "u1", "kim", "pw", "010")).Err, repository.ErrIntegrity)

	ok := recv(t, c.Login(w, "u1", "pw"))
	require.NoError(t, ok.Err)
	assert.True(t, ok.Value)

	bad := recv(t, c.Login(w, "u1", "nope"))
	require.NoError(t, bad.Err)
	assert.False(t, bad.Value)

	require.NoError(t, recv(t, c.UpdateInfo(w, "u1", "pw2", "lee", "011")).Err)
	m := recv(t, c.Member(w, "u1"))
	require.NoError(t, m.Err)
	assert.Equal(t, "lee", m.Value.Username)

	assert.ErrorIs(t, recv(t, c.RemainingTime(w, "ghost")).Err, repository.ErrMemberNotFound)

	rank := recv(t, c.Ranking(w))
	require.NoError(t, rank.Err)
	assert.Len(t, rank.Value, 1)
}

func TestClient_PurchaseUsesUnitsPerHour(t *testing.T) {
	plans := &fakePlans{}
	c := &Client{Plans: plans, UnitsPerHour: 60}
	w := NewWindow(context.Background(), time.Second)
	defer w.Close()

	r := recv(t, c.Purchase(w, "u1", "H1"))
	require.NoError(t, r.Err)
	assert.Equal(t, 60, plans.gotUnits)

	list := recv(t, c.PlanList(w))
	require.NoError(t, list.Err)
	assert.Equal(t, "H1", list.Value[0].Key)
}

func TestClient_Payments(t *testing.T) {
	c := &Client{Payments: fakePayments{}}
	w := NewWindow(context.Background(), time.Second)
	defer w.Close()

	r := recv(t, c.Checkout(w, "u1", 4, []string{"F1", "F2"}, payment.Card))
	require.NoError(t, r.Err)
	assert.Equal(t, payment.Confirmed, r.Value.Result)
	assert.Equal(t, 2000, r.Value.Total)

	cancel := recv(t, c.CancelOrders(w, 4))
	require.NoError(t, cancel.Err)
	assert.Equal(t, payment.Cancelled, cancel.Value.Result)
}
