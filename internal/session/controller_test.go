package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 89000

type fakeStore struct {
	mu   sync.Mutex
	data map[uint][]models.CashierSession

	saveErr       error
	deactivateErr error
	saves         int

	// blockFirstSave parks the first SaveSessions call on saveRelease so
	// a test can overlap a second command with an in-flight one.
	blockFirstSave bool
	saveStarted    chan struct{}
	saveRelease    chan struct{}
	blockedOnce    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[uint][]models.CashierSession)}
}

func (f *fakeStore) LoadSessions(_ context.Context, branchID uint) ([]models.CashierSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSessions(f.data[branchID]), nil
}

func (f *fakeStore) SaveSessions(_ context.Context, branchID uint, sessions []models.CashierSession) ([]models.CashierSession, error) {
	f.mu.Lock()
	shouldBlock := f.blockFirstSave && !f.blockedOnce
	if shouldBlock {
		f.blockedOnce = true
	}
	f.mu.Unlock()
	if shouldBlock {
		f.saveStarted <- struct{}{}
		<-f.saveRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.data[branchID] = cloneSessions(sessions)
	f.saves++
	return cloneSessions(sessions), nil
}

func (f *fakeStore) DeactivateUserSessions(_ context.Context, userID uint, exceptBranchID uint) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for branchID, sessions := range f.data {
		if branchID == exceptBranchID {
			continue
		}
		for i := range sessions {
			if sessions[i].UserID == userID && sessions[i].IsActive {
				sessions[i].IsActive = false
				sessions[i].EndTime = &now
			}
		}
	}
	return nil
}

type fakeLedger struct {
	mu        sync.Mutex
	branchID  uint
	amountLBP float64
	amountUSD float64
	sessionID string
	calls     int
}

func (f *fakeLedger) RecordUnreconciledDrawer(_ context.Context, branchID uint, amountLBP, amountUSD float64, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchID = branchID
	f.amountLBP = amountLBP
	f.amountUSD = amountUSD
	f.sessionID = sessionID
	f.calls++
	return nil
}

func newTestController(store *fakeStore, ledger DrawerLedger) *Controller {
	ctrl := NewController(store, ledger, time.Second)
	ctrl.now = func() time.Time {
		return time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	}
	return ctrl
}

func drawer(counts map[int]int) cash.Inventory {
	inv := cash.NewInventory()
	for note, count := range counts {
		inv[cash.CurrencyLBP][note] = count
	}
	return inv
}

var (
	alice = models.User{ID: 1, Name: "Alice"}
	bilal = models.User{ID: 2, Name: "Bilal"}
)

func TestStartSessionPersists(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, nil)

	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{100000: 2}))
	require.NoError(t, err)

	assert.NotEmpty(t, created.SessionID)
	assert.True(t, created.IsActive)
	assert.Equal(t, alice.ID, created.UserID)
	assert.Equal(t, 200000, created.CurrentInventory.TotalValue(cash.CurrencyLBP))

	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created.SessionID, stored[0].SessionID)
}

func TestStartSessionRejectsSameDayDuplicate(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)

	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)
	_, err = ctrl.EndSession(context.Background(), 1, created.SessionID)
	require.NoError(t, err)

	// Active or ended, a same-day session is resumed through Login,
	// never started again.
	_, err = ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{5000: 2}))
	assert.ErrorIs(t, err, ErrSessionExists)

	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLoginNeedsSetupOnEmptyBranch(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)

	res, err := ctrl.Login(context.Background(), 1, alice, testRate)
	require.NoError(t, err)

	assert.True(t, res.NeedsSetup)
	assert.Nil(t, res.Session)
	assert.Nil(t, res.Handover)
}

func TestLoginResumesActiveSession(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)

	res, err := ctrl.Login(context.Background(), 1, alice, testRate)
	require.NoError(t, err)

	require.NotNil(t, res.Session)
	assert.Equal(t, created.SessionID, res.Session.SessionID)
	assert.True(t, res.Session.IsActive)
	assert.False(t, res.NeedsSetup)
}

func TestLoginReactivatesOwnEndedSession(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)
	_, err = ctrl.EndSession(context.Background(), 1, created.SessionID)
	require.NoError(t, err)

	res, err := ctrl.Login(context.Background(), 1, alice, testRate)
	require.NoError(t, err)

	// Same day, same user: the ended session is reactivated, never
	// duplicated.
	require.NotNil(t, res.Session)
	assert.Equal(t, created.SessionID, res.Session.SessionID)
	assert.True(t, res.Session.IsActive)
	assert.Nil(t, res.Session.EndTime)

	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLoginEndsActiveSessionInOtherBranch(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)

	res, err := ctrl.Login(context.Background(), 2, alice, testRate)
	require.NoError(t, err)
	assert.True(t, res.NeedsSetup)

	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created.SessionID, stored[0].SessionID)
	assert.False(t, stored[0].IsActive, "at most one active session per user anywhere")
}

func TestHandoverConfirm(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	prior, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{100000: 3, 5000: 4}))
	require.NoError(t, err)
	_, err = ctrl.EndSession(context.Background(), 1, prior.SessionID)
	require.NoError(t, err)

	res, err := ctrl.Login(context.Background(), 1, bilal, testRate)
	require.NoError(t, err)

	require.NotNil(t, res.Handover)
	assert.Equal(t, prior.SessionID, res.Handover.PriorSessionID)
	assert.Equal(t, "Alice", res.Handover.PriorUserName)
	assert.InDelta(t, 320000, res.Handover.TotalValueLBP, 0.01)

	created, err := ctrl.ConfirmHandover(context.Background(), 1, bilal.ID)
	require.NoError(t, err)

	assert.Equal(t, bilal.ID, created.UserID)
	assert.True(t, created.IsActive)
	assert.Equal(t, prior.CurrentInventory, created.StartingInventory,
		"accepted drawer carries over as the starting inventory")

	// The offer is consumed.
	_, err = ctrl.ConfirmHandover(context.Background(), 1, bilal.ID)
	assert.ErrorIs(t, err, ErrNoPendingHandover)
}

func TestHandoverDeclineRecordsUnreconciledDrawer(t *testing.T) {
	ledger := &fakeLedger{}
	ctrl := newTestController(newFakeStore(), ledger)
	prior, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{100000: 2}))
	require.NoError(t, err)
	_, err = ctrl.EndSession(context.Background(), 1, prior.SessionID)
	require.NoError(t, err)

	res, err := ctrl.Login(context.Background(), 1, bilal, testRate)
	require.NoError(t, err)
	require.NotNil(t, res.Handover)

	require.NoError(t, ctrl.DeclineHandover(context.Background(), 1, bilal.ID))

	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, uint(1), ledger.branchID)
	assert.InDelta(t, 200000, ledger.amountLBP, 0.01)
	assert.Zero(t, ledger.amountUSD)
	assert.Equal(t, prior.SessionID, ledger.sessionID)

	assert.ErrorIs(t, ctrl.DeclineHandover(context.Background(), 1, bilal.ID), ErrNoPendingHandover)
}

func TestApplyCashTransaction(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{20000: 5}))
	require.NoError(t, err)

	tendered := []cash.BreakdownItem{{Note: 100000, Currency: cash.CurrencyLBP, Count: 1}}
	result, err := ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 60000, tendered, testRate)
	require.NoError(t, err)

	assert.Equal(t, []cash.BreakdownItem{{Note: 20000, Currency: cash.CurrencyLBP, Count: 2}}, result.ChangeNotes)
	assert.Zero(t, result.Shortfall)
	assert.Nil(t, result.Overage)

	// Drawer conservation: starting value plus the sale total.
	assert.Equal(t, 160000, result.Session.CurrentInventory.TotalValue(cash.CurrencyLBP))
	require.Len(t, result.Session.Transactions, 1)
	assert.Equal(t, "INV-1", result.Session.Transactions[0].InvoiceNumber)
}

func TestApplyCashTransactionUSDTenderOnLBPOnlyDrawer(t *testing.T) {
	// Drawers posted by terminals may carry a single currency key; the
	// first USD tender must land cleanly, not assume the map exists.
	var inv cash.Inventory
	require.NoError(t, json.Unmarshal([]byte(`{"LBP":{"20000":5}}`), &inv))

	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, inv)
	require.NoError(t, err)

	tendered := []cash.BreakdownItem{{Note: 1, Currency: cash.CurrencyUSD, Count: 1}}
	result, err := ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 89000, tendered, testRate)
	require.NoError(t, err)

	assert.Empty(t, result.ChangeNotes)
	assert.Equal(t, 1, result.Session.CurrentInventory.Count(cash.CurrencyUSD, 1))
	assert.Equal(t, 100000, result.Session.CurrentInventory.TotalValue(cash.CurrencyLBP))
}

func TestBreakChangeIntoOtherCurrency(t *testing.T) {
	var inv cash.Inventory
	require.NoError(t, json.Unmarshal([]byte(`{"LBP":{"100000":1}}`), &inv))

	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, inv)
	require.NoError(t, err)

	// At a rate of 100,000 the swap is value-exact.
	updated, err := ctrl.BreakChange(context.Background(), 1, created.SessionID,
		cash.BreakdownItem{Note: 100000, Currency: cash.CurrencyLBP, Count: 1},
		[]cash.BreakdownItem{{Note: 1, Currency: cash.CurrencyUSD, Count: 1}},
		100000)
	require.NoError(t, err)

	assert.Zero(t, updated.CurrentInventory.Count(cash.CurrencyLBP, 100000))
	assert.Equal(t, 1, updated.CurrentInventory.Count(cash.CurrencyUSD, 1))
}

func TestApplyCashTransactionInsufficientTender(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{20000: 5}))
	require.NoError(t, err)

	tendered := []cash.BreakdownItem{{Note: 20000, Currency: cash.CurrencyLBP, Count: 1}}
	_, err = ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 60000, tendered, testRate)
	assert.ErrorIs(t, err, ErrInsufficientTender)

	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100000, stored[0].CurrentInventory.TotalValue(cash.CurrencyLBP), "rejected sale must not touch the drawer")
}

func TestApplyCashTransactionAbsorbsShortfallAsOverage(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 2}))
	require.NoError(t, err)

	tendered := []cash.BreakdownItem{{Note: 50000, Currency: cash.CurrencyLBP, Count: 1}}
	result, err := ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-7", 30000, tendered, testRate)
	require.NoError(t, err, "the sale completes even when change cannot be covered")

	assert.InDelta(t, 18000, result.Shortfall, 0.01)
	require.NotNil(t, result.Overage)
	assert.InDelta(t, 18000, result.Overage.Amount, 0.01)
	assert.Equal(t, "INV-7", result.Overage.InvoiceNumber)
	require.Len(t, result.Session.OverageLog, 1)
	require.Len(t, result.Session.Transactions, 1)
}

func TestApplyCashTransactionRollsBackOnSaveFailure(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{20000: 5}))
	require.NoError(t, err)

	store.mu.Lock()
	store.saveErr = errors.New("connection reset")
	store.mu.Unlock()

	tendered := []cash.BreakdownItem{{Note: 100000, Currency: cash.CurrencyLBP, Count: 1}}
	_, err = ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 60000, tendered, testRate)
	assert.ErrorIs(t, err, ErrSyncFailed)

	// Last known-good state survives the failed save.
	stored, err := ctrl.Sessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100000, stored[0].CurrentInventory.TotalValue(cash.CurrencyLBP))
	assert.Empty(t, stored[0].Transactions)

	// The session is usable again once the store recovers.
	store.mu.Lock()
	store.saveErr = nil
	store.mu.Unlock()
	_, err = ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 60000, tendered, testRate)
	assert.NoError(t, err)
}

func TestApplyCashTransactionBusyGuard(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{20000: 5}))
	require.NoError(t, err)

	store.mu.Lock()
	store.blockFirstSave = true
	store.saveStarted = make(chan struct{})
	store.saveRelease = make(chan struct{})
	store.mu.Unlock()

	tendered := []cash.BreakdownItem{{Note: 20000, Currency: cash.CurrencyLBP, Count: 1}}
	done := make(chan error, 1)
	go func() {
		_, err := ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-1", 20000, tendered, testRate)
		done <- err
	}()
	<-store.saveStarted

	// Second submit for the same session while the first is in flight.
	_, err = ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-2", 20000, tendered, testRate)
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(store.saveRelease)
	require.NoError(t, <-done)

	// Released after completion.
	_, err = ctrl.ApplyCashTransaction(context.Background(), 1, created.SessionID, "INV-3", 20000, tendered, testRate)
	assert.NoError(t, err)
}

func TestBreakChange(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{100000: 1}))
	require.NoError(t, err)

	t.Run("value mismatch rejected", func(t *testing.T) {
		_, err := ctrl.BreakChange(context.Background(), 1, created.SessionID,
			cash.BreakdownItem{Note: 100000, Currency: cash.CurrencyLBP, Count: 1},
			[]cash.BreakdownItem{{Note: 50000, Currency: cash.CurrencyLBP, Count: 1}},
			testRate)
		assert.ErrorIs(t, err, ErrValueMismatch)
	})

	t.Run("only single notes can be broken", func(t *testing.T) {
		_, err := ctrl.BreakChange(context.Background(), 1, created.SessionID,
			cash.BreakdownItem{Note: 100000, Currency: cash.CurrencyLBP, Count: 2},
			[]cash.BreakdownItem{{Note: 50000, Currency: cash.CurrencyLBP, Count: 4}},
			testRate)
		assert.Error(t, err)
	})

	t.Run("equal-value swap", func(t *testing.T) {
		updated, err := ctrl.BreakChange(context.Background(), 1, created.SessionID,
			cash.BreakdownItem{Note: 100000, Currency: cash.CurrencyLBP, Count: 1},
			[]cash.BreakdownItem{{Note: 50000, Currency: cash.CurrencyLBP, Count: 2}},
			testRate)
		require.NoError(t, err)
		assert.Zero(t, updated.CurrentInventory.Count(cash.CurrencyLBP, 100000))
		assert.Equal(t, 2, updated.CurrentInventory.Count(cash.CurrencyLBP, 50000))
		assert.Equal(t, 100000, updated.CurrentInventory.TotalValue(cash.CurrencyLBP))
	})
}

func TestEndSessionIdempotent(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)
	created, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)

	first, err := ctrl.EndSession(context.Background(), 1, created.SessionID)
	require.NoError(t, err)
	require.NotNil(t, first.EndTime)
	assert.False(t, first.IsActive)

	second, err := ctrl.EndSession(context.Background(), 1, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.EndTime, second.EndTime, "ending twice must not move the end time")
}

func TestReplaceSessionsIsAuthoritative(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, nil)
	_, err := ctrl.StartSession(context.Background(), 1, alice, drawer(map[int]int{1000: 10}))
	require.NoError(t, err)

	replacement := []models.CashierSession{{
		SessionID:         "restored-1",
		BranchID:          1,
		UserID:            bilal.ID,
		UserName:          bilal.Name,
		StartTime:         time.Date(2026, time.March, 7, 8, 0, 0, 0, time.UTC),
		StartingInventory: drawer(map[int]int{5000: 6}),
		CurrentInventory:  drawer(map[int]int{5000: 6}),
		IsActive:          true,
	}}

	stored, err := ctrl.ReplaceSessions(context.Background(), 1, replacement)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "restored-1", stored[0].SessionID)

	// Submitting the same collection again changes nothing.
	again, err := ctrl.ReplaceSessions(context.Background(), 1, replacement)
	require.NoError(t, err)
	assert.Equal(t, stored, again)
}

func TestReplaceSessionsRejectsInvalidInventory(t *testing.T) {
	ctrl := newTestController(newFakeStore(), nil)

	bad := drawer(map[int]int{1000: 5})
	bad[cash.CurrencyLBP][1000] = -1
	_, err := ctrl.ReplaceSessions(context.Background(), 1, []models.CashierSession{{
		SessionID:        "bad-1",
		CurrentInventory: bad,
	}})
	assert.Error(t, err)
}

func TestLoginFailsWhenStoreUnreachable(t *testing.T) {
	store := newFakeStore()
	store.deactivateErr = errors.New("connection refused")
	ctrl := newTestController(store, nil)

	_, err := ctrl.Login(context.Background(), 1, alice, testRate)
	assert.ErrorIs(t, err, ErrSyncFailed)
}
