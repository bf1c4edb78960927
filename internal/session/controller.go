package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/models"

	"github.com/google/uuid"
)

var (
	ErrSessionExists      = errors.New("a same-day session already exists for this user")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session is not active")
	ErrSessionBusy        = errors.New("another transaction is still being processed")
	ErrNoPendingHandover  = errors.New("no handover is pending")
	ErrValueMismatch      = errors.New("received notes do not match the broken note's value")
	ErrInsufficientTender = errors.New("tendered notes do not cover the total")
	ErrSyncFailed         = errors.New("saving to the store failed")
)

// Store persists session collections with whole-collection replace
// semantics: callers always submit the complete authoritative list for a
// branch, never a delta. SaveSessions must be idempotent.
type Store interface {
	LoadSessions(ctx context.Context, branchID uint) ([]models.CashierSession, error)
	SaveSessions(ctx context.Context, branchID uint, sessions []models.CashierSession) ([]models.CashierSession, error)
	DeactivateUserSessions(ctx context.Context, userID uint, exceptBranchID uint) error
}

// DrawerLedger receives the frozen balance of a declined handover so it
// ends up in the branch ledger instead of being silently dropped.
type DrawerLedger interface {
	RecordUnreconciledDrawer(ctx context.Context, branchID uint, amountLBP, amountUSD float64, sessionID string) error
}

// LoginResult tells the caller how the login resolved: an already-active
// (resumed or reactivated) session, a pending handover decision, or a
// fresh drawer count.
type LoginResult struct {
	Session    *models.CashierSession `json:"session,omitempty"`
	NeedsSetup bool                   `json:"needsSetup"`
	Handover   *HandoverOffer         `json:"handover,omitempty"`
}

// HandoverOffer presents the prior cashier's frozen drawer to the
// incoming one. Accept copies it as the new starting inventory; Decline
// forces an independent fresh count.
type HandoverOffer struct {
	PriorSessionID string         `json:"priorSessionId"`
	PriorUserName  string         `json:"priorUserName"`
	PriorEndTime   *time.Time     `json:"priorEndTime"`
	Inventory      cash.Inventory `json:"inventory"`
	TotalValueLBP  float64        `json:"totalValueLBP"`
}

// TransactionResult is what a completed cash sale did to the drawer.
type TransactionResult struct {
	ChangeNotes []cash.BreakdownItem  `json:"changeNotes"`
	Shortfall   float64               `json:"shortfall"`
	Overage     *models.OverageEntry  `json:"overage,omitempty"`
	Session     models.CashierSession `json:"session"`
}

type pendingHandover struct {
	userID   uint
	userName string
	prior    models.CashierSession
}

// Controller owns the cashier session state machine for every branch.
// Commands mutate a working copy first, persist it with a bounded
// timeout, and only then swap the in-memory snapshot; on a store failure
// the last known-good snapshot stays in place and the caller is told.
// There is no automatic retry.
type Controller struct {
	store       Store
	ledger      DrawerLedger
	saveTimeout time.Duration
	now         func() time.Time
	newID       func() string

	mu      sync.Mutex
	cache   map[uint][]models.CashierSession
	busy    map[string]bool
	pending map[uint]*pendingHandover
}

func NewController(store Store, ledger DrawerLedger, saveTimeout time.Duration) *Controller {
	if saveTimeout <= 0 {
		saveTimeout = 15 * time.Second
	}
	return &Controller{
		store:       store,
		ledger:      ledger,
		saveTimeout: saveTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
		cache:       make(map[uint][]models.CashierSession),
		busy:        make(map[string]bool),
		pending:     make(map[uint]*pendingHandover),
	}
}

// Sessions returns a read-only snapshot of a branch's sessions.
func (c *Controller) Sessions(ctx context.Context, branchID uint) ([]models.CashierSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, err := c.loadLocked(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return cloneSessions(sessions), nil
}

// Login resolves what happens when a cashier enters a branch:
//   - a same-day session of their own is resumed (reactivated if ended),
//   - otherwise a same-day ended session of another user triggers a
//     handover offer,
//   - otherwise the cashier must count a fresh drawer.
//
// An active session held by the same user in another branch is ended
// first, so at most one active session per user exists anywhere.
func (c *Controller) Login(ctx context.Context, branchID uint, user models.User, usdToLbpRate float64) (LoginResult, error) {
	if err := c.store.DeactivateUserSessions(ctx, user.ID, branchID); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	c.mu.Lock()
	// Other branches may have been touched by the deactivation; drop
	// their snapshots so they reload from the store.
	for id := range c.cache {
		if id != branchID {
			delete(c.cache, id)
		}
	}
	sessions, err := c.loadLocked(ctx, branchID)
	if err != nil {
		c.mu.Unlock()
		return LoginResult{}, err
	}
	sessions = cloneSessions(sessions)
	c.mu.Unlock()

	today := c.now()

	// Own same-day session: resume, reactivating if it was ended.
	for i := range sessions {
		s := &sessions[i]
		if s.UserID == user.ID && sameDay(s.StartTime, today) {
			if !s.IsActive {
				s.IsActive = true
				s.EndTime = nil
				stored, err := c.save(ctx, branchID, sessions)
				if err != nil {
					return LoginResult{}, err
				}
				resumed := findSession(stored, s.SessionID)
				return LoginResult{Session: resumed}, nil
			}
			snap := cloneSession(*s)
			return LoginResult{Session: &snap}, nil
		}
	}

	// Latest same-day ended session of another user: offer a handover.
	if prior := latestEndedToday(sessions, today); prior != nil {
		c.mu.Lock()
		c.pending[branchID] = &pendingHandover{userID: user.ID, userName: user.Name, prior: cloneSession(*prior)}
		c.mu.Unlock()
		return LoginResult{Handover: &HandoverOffer{
			PriorSessionID: prior.SessionID,
			PriorUserName:  prior.UserName,
			PriorEndTime:   prior.EndTime,
			Inventory:      prior.CurrentInventory.Clone(),
			TotalValueLBP:  prior.CurrentInventory.TotalValueLBP(usdToLbpRate),
		}}, nil
	}

	return LoginResult{NeedsSetup: true}, nil
}

// StartSession opens a fresh session from a counted drawer. A same-day
// session of the same user is never duplicated: Login resumes or
// reactivates it instead.
func (c *Controller) StartSession(ctx context.Context, branchID uint, user models.User, startingInventory cash.Inventory) (models.CashierSession, error) {
	if err := validateInventory(startingInventory); err != nil {
		return models.CashierSession{}, err
	}

	newSession := models.CashierSession{
		SessionID:         c.newID(),
		BranchID:          branchID,
		UserID:            user.ID,
		UserName:          user.Name,
		StartTime:         c.now(),
		StartingInventory: startingInventory.Clone(),
		CurrentInventory:  startingInventory.Clone(),
		OverageLog:        []models.OverageEntry{},
		Transactions:      []models.SessionTransaction{},
		IsActive:          true,
	}

	var created models.CashierSession
	err := c.mutateBranch(ctx, branchID, func(sessions []models.CashierSession) ([]models.CashierSession, error) {
		for i := range sessions {
			if sessions[i].UserID == user.ID {
				if sameDay(sessions[i].StartTime, newSession.StartTime) {
					return nil, ErrSessionExists
				}
				sessions[i].IsActive = false
			}
		}
		sessions = append(sessions, newSession)
		created = newSession
		return sessions, nil
	})
	if err != nil {
		return models.CashierSession{}, err
	}
	return created, nil
}

// ApplyCashTransaction adds the tendered notes to the drawer, computes and
// removes change, and logs the sale. A second submit for the same session
// while one is in flight is rejected.
func (c *Controller) ApplyCashTransaction(ctx context.Context, branchID uint, sessionID, invoiceNumber string, totalLBP float64, tendered []cash.BreakdownItem, usdToLbpRate float64) (TransactionResult, error) {
	if totalLBP <= 0 {
		return TransactionResult{}, fmt.Errorf("total must be positive")
	}
	release, err := c.acquire(sessionID)
	if err != nil {
		return TransactionResult{}, err
	}
	defer release()

	var result TransactionResult
	err = c.mutateBranch(ctx, branchID, func(sessions []models.CashierSession) ([]models.CashierSession, error) {
		s := findSession(sessions, sessionID)
		if s == nil {
			return nil, ErrSessionNotFound
		}
		if !s.IsActive {
			return nil, ErrSessionNotActive
		}

		inv := s.CurrentInventory.Clone()
		if err := inv.AddItems(tendered); err != nil {
			return nil, err
		}

		tenderedLBP := cash.TotalValueLBP(tendered, usdToLbpRate)
		changeDue := tenderedLBP - totalLBP
		if changeDue < -cash.ChangeEpsilonLBP {
			return nil, ErrInsufficientTender
		}

		var changeNotes []cash.BreakdownItem
		var shortfall float64
		if changeDue > cash.ChangeEpsilonLBP {
			res := cash.MakeChange(changeDue, inv, usdToLbpRate)
			if err := inv.SubtractItems(res.Breakdown); err != nil {
				return nil, err
			}
			changeNotes = res.Breakdown
			shortfall = res.Shortfall
		}

		tx := models.SessionTransaction{
			InvoiceNumber: invoiceNumber,
			Total:         totalLBP,
			TenderedNotes: tendered,
			ChangeNotes:   changeNotes,
		}
		s.Transactions = append(s.Transactions, tx)
		s.CurrentInventory = inv

		result = TransactionResult{ChangeNotes: changeNotes, Shortfall: shortfall}
		if shortfall > 0 {
			overage := models.OverageEntry{
				ID:            c.newID(),
				Date:          c.now(),
				Amount:        shortfall,
				InvoiceNumber: invoiceNumber,
			}
			s.OverageLog = append(s.OverageLog, overage)
			result.Overage = &overage
		}
		result.Session = cloneSession(*s)
		return sessions, nil
	})
	if err != nil {
		return TransactionResult{}, err
	}
	return result, nil
}

// BreakChange swaps one held note for received notes of equal value
// (within the change epsilon). Rejected without mutation on a mismatch.
func (c *Controller) BreakChange(ctx context.Context, branchID uint, sessionID string, noteToBreak cash.BreakdownItem, received []cash.BreakdownItem, usdToLbpRate float64) (models.CashierSession, error) {
	if noteToBreak.Count != 1 {
		return models.CashierSession{}, fmt.Errorf("exactly one note can be broken at a time")
	}
	diff := noteToBreak.ValueLBP(usdToLbpRate) - cash.TotalValueLBP(received, usdToLbpRate)
	if diff > cash.ChangeEpsilonLBP || diff < -cash.ChangeEpsilonLBP {
		return models.CashierSession{}, ErrValueMismatch
	}

	release, err := c.acquire(sessionID)
	if err != nil {
		return models.CashierSession{}, err
	}
	defer release()

	var updated models.CashierSession
	err = c.mutateBranch(ctx, branchID, func(sessions []models.CashierSession) ([]models.CashierSession, error) {
		s := findSession(sessions, sessionID)
		if s == nil {
			return nil, ErrSessionNotFound
		}
		if !s.IsActive {
			return nil, ErrSessionNotActive
		}
		inv := s.CurrentInventory.Clone()
		if err := inv.Subtract(noteToBreak.Currency, noteToBreak.Note, noteToBreak.Count); err != nil {
			return nil, err
		}
		if err := inv.AddItems(received); err != nil {
			return nil, err
		}
		s.CurrentInventory = inv
		updated = cloneSession(*s)
		return sessions, nil
	})
	if err != nil {
		return models.CashierSession{}, err
	}
	return updated, nil
}

// EndSession freezes the drawer: the session's CurrentInventory becomes
// the authoritative handover balance.
func (c *Controller) EndSession(ctx context.Context, branchID uint, sessionID string) (models.CashierSession, error) {
	var ended models.CashierSession
	err := c.mutateBranch(ctx, branchID, func(sessions []models.CashierSession) ([]models.CashierSession, error) {
		s := findSession(sessions, sessionID)
		if s == nil {
			return nil, ErrSessionNotFound
		}
		if s.IsActive {
			now := c.now()
			s.IsActive = false
			s.EndTime = &now
		}
		ended = cloneSession(*s)
		return sessions, nil
	})
	if err != nil {
		return models.CashierSession{}, err
	}
	return ended, nil
}

// ConfirmHandover accepts the pending offer: the prior drawer becomes the
// incoming cashier's starting inventory.
func (c *Controller) ConfirmHandover(ctx context.Context, branchID uint, userID uint) (models.CashierSession, error) {
	c.mu.Lock()
	pending := c.pending[branchID]
	c.mu.Unlock()
	if pending == nil || pending.userID != userID {
		return models.CashierSession{}, ErrNoPendingHandover
	}

	newSession := models.CashierSession{
		SessionID:         c.newID(),
		BranchID:          branchID,
		UserID:            pending.userID,
		UserName:          pending.userName,
		StartTime:         c.now(),
		StartingInventory: pending.prior.CurrentInventory.Clone(),
		CurrentInventory:  pending.prior.CurrentInventory.Clone(),
		OverageLog:        []models.OverageEntry{},
		Transactions:      []models.SessionTransaction{},
		IsActive:          true,
	}

	err := c.mutateBranch(ctx, branchID, func(sessions []models.CashierSession) ([]models.CashierSession, error) {
		for i := range sessions {
			if sessions[i].UserID == pending.userID {
				sessions[i].IsActive = false
			}
		}
		return append(sessions, newSession), nil
	})
	if err != nil {
		return models.CashierSession{}, err
	}

	c.mu.Lock()
	delete(c.pending, branchID)
	c.mu.Unlock()
	return newSession, nil
}

// DeclineHandover dismisses the pending offer. The prior drawer's frozen
// balance is routed to the branch ledger as an unreconciled entry so it
// stays visible; the incoming cashier then counts a fresh drawer.
func (c *Controller) DeclineHandover(ctx context.Context, branchID uint, userID uint) error {
	c.mu.Lock()
	pending := c.pending[branchID]
	if pending == nil || pending.userID != userID {
		c.mu.Unlock()
		return ErrNoPendingHandover
	}
	delete(c.pending, branchID)
	c.mu.Unlock()

	if c.ledger != nil {
		inv := pending.prior.CurrentInventory
		err := c.ledger.RecordUnreconciledDrawer(ctx, branchID,
			float64(inv.TotalValue(cash.CurrencyLBP)),
			float64(inv.TotalValue(cash.CurrencyUSD)),
			pending.prior.SessionID)
		if err != nil {
			log.Printf("declined handover: failed to record unreconciled drawer for session %s: %v", pending.prior.SessionID, err)
		}
	}
	return nil
}

// ReplaceSessions applies an externally submitted whole collection, e.g.
// an operator restoring a branch. The same optimistic save path is used.
func (c *Controller) ReplaceSessions(ctx context.Context, branchID uint, sessions []models.CashierSession) ([]models.CashierSession, error) {
	for _, s := range sessions {
		if err := validateInventory(s.CurrentInventory); err != nil {
			return nil, fmt.Errorf("session %s: %w", s.SessionID, err)
		}
	}
	err := c.mutateBranch(ctx, branchID, func([]models.CashierSession) ([]models.CashierSession, error) {
		return cloneSessions(sessions), nil
	})
	if err != nil {
		return nil, err
	}
	return c.Sessions(ctx, branchID)
}

// ---- internals ----

// acquire marks a session busy for the duration of one transaction-style
// command. The second concurrent submit gets ErrSessionBusy.
func (c *Controller) acquire(sessionID string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy[sessionID] {
		return nil, ErrSessionBusy
	}
	c.busy[sessionID] = true
	return func() {
		c.mu.Lock()
		delete(c.busy, sessionID)
		c.mu.Unlock()
	}, nil
}

// mutateBranch clones the last known-good collection, lets fn rework it,
// persists the result and only then swaps the snapshot. Any error leaves
// the snapshot untouched.
func (c *Controller) mutateBranch(ctx context.Context, branchID uint, fn func([]models.CashierSession) ([]models.CashierSession, error)) error {
	c.mu.Lock()
	sessions, err := c.loadLocked(ctx, branchID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	work := cloneSessions(sessions)
	c.mu.Unlock()

	work, err = fn(work)
	if err != nil {
		return err
	}

	_, err = c.save(ctx, branchID, work)
	return err
}

func (c *Controller) save(ctx context.Context, branchID uint, sessions []models.CashierSession) ([]models.CashierSession, error) {
	saveCtx, cancel := context.WithTimeout(ctx, c.saveTimeout)
	defer cancel()
	stored, err := c.store.SaveSessions(saveCtx, branchID, sessions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	c.mu.Lock()
	c.cache[branchID] = cloneSessions(stored)
	c.mu.Unlock()
	return stored, nil
}

func (c *Controller) loadLocked(ctx context.Context, branchID uint) ([]models.CashierSession, error) {
	if cached, ok := c.cache[branchID]; ok {
		return cached, nil
	}
	loaded, err := c.store.LoadSessions(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	c.cache[branchID] = loaded
	return loaded, nil
}

func validateInventory(inv cash.Inventory) error {
	for cur, notes := range inv {
		for note, count := range notes {
			if !cash.ValidDenomination(cur, note) {
				return fmt.Errorf("unknown denomination %d %s", note, cur)
			}
			if count < 0 {
				return fmt.Errorf("negative count for %d %s", note, cur)
			}
		}
	}
	return nil
}

func findSession(sessions []models.CashierSession, sessionID string) *models.CashierSession {
	for i := range sessions {
		if sessions[i].SessionID == sessionID {
			return &sessions[i]
		}
	}
	return nil
}

func latestEndedToday(sessions []models.CashierSession, today time.Time) *models.CashierSession {
	var latest *models.CashierSession
	for i := range sessions {
		s := &sessions[i]
		if s.IsActive || s.EndTime == nil || !sameDay(s.StartTime, today) {
			continue
		}
		if latest == nil || s.EndTime.After(*latest.EndTime) {
			latest = s
		}
	}
	return latest
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func cloneSession(s models.CashierSession) models.CashierSession {
	out := s
	out.StartingInventory = s.StartingInventory.Clone()
	out.CurrentInventory = s.CurrentInventory.Clone()
	out.OverageLog = append([]models.OverageEntry{}, s.OverageLog...)
	out.Transactions = append([]models.SessionTransaction{}, s.Transactions...)
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

func cloneSessions(sessions []models.CashierSession) []models.CashierSession {
	out := make([]models.CashierSession, len(sessions))
	for i, s := range sessions {
		out[i] = cloneSession(s)
	}
	return out
}
