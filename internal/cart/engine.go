// Package cart owns the in-memory cart of one device, mirrors it to the
// device-local store on every mutation and to the account's remote cart on a
// trailing debounce, and merges the two when the device signs in.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDebounce      = 1500 * time.Millisecond
	DefaultRemoteTimeout = 15 * time.Second
)

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrClosed       = errors.New("cart engine closed")
)

type Options struct {
	Debounce      time.Duration
	RemoteTimeout time.Duration
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = DefaultRemoteTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Engine struct {
	remote    repository.CartStore
	mirror    cache.Mirror
	mirrorKey string
	opts      Options
	logger    *zap.Logger

	// opMu serializes mutations and reconciliation; mu guards the fields
	// below it for readers.
	opMu       sync.Mutex
	mu         sync.RWMutex
	lines      []domain.CartLine
	account    string
	reconciled string
	updatedAt  time.Time
	closed     bool
	// unsaved marks edits of the signed-in cart not yet taken by a remote
	// save.
	unsaved bool

	sfg      singleflight.Group
	saver    *Debouncer
	pushMu   sync.Mutex
	flushing sync.WaitGroup
}

// NewEngine returns an empty, anonymous engine whose local mirror lives under
// mirrorKey.
func NewEngine(remote repository.CartStore, mirror cache.Mirror, mirrorKey string, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		remote:    remote,
		mirror:    mirror,
		mirrorKey: mirrorKey,
		opts:      opts,
		logger:    opts.Logger.With(zap.String("mirror_key", mirrorKey)),
		lines:     []domain.CartLine{},
	}
	e.saver = NewDebouncer(opts.Debounce, e.saveLatest)
	return e
}

// Restore loads the local mirror. A mirror written while signed in restores
// the account as already reconciled.
func (e *Engine) Restore(ctx context.Context) error {
	raw, err := e.mirror.Get(ctx, e.mirrorKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read local mirror: %w", err)
	}

	var snapshot domain.Cart
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		e.logger.Warn("discarding unreadable local mirror", zap.Error(err))
		return nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.mu.Lock()
	e.lines = domain.Normalize(snapshot.Lines)
	e.account = snapshot.AccountID
	e.reconciled = snapshot.AccountID
	e.updatedAt = snapshot.UpdatedAt
	e.mu.Unlock()
	return nil
}

// AddLine adds line.Quantity to the existing line of the same product, or
// appends the line.
func (e *Engine) AddLine(ctx context.Context, line domain.CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	return e.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		for i := range lines {
			if lines[i].ProductID == line.ProductID {
				lines[i].Quantity += line.Quantity
				return lines, nil
			}
		}
		return append(lines, line), nil
	})
}

// RemoveLine is a no-op for products not in the cart.
func (e *Engine) RemoveLine(ctx context.Context, productID string) error {
	return e.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

// SetQuantity overwrites the quantity of an existing line. A quantity of zero
// or less removes the line.
func (e *Engine) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveLine(ctx, productID)
	}
	return e.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = quantity
				return lines, nil
			}
		}
		return nil, ErrLineNotFound
	})
}

func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, func([]domain.CartLine) ([]domain.CartLine, error) {
		return []domain.CartLine{}, nil
	})
}

// RemoveHandedOff subtracts lines handed off for accountID from the cart.
// Lines added or increased after the handoff snapshot keep the difference.
// Nothing is removed when the engine has since moved to another account.
func (e *Engine) RemoveHandedOff(ctx context.Context, accountID string, handed []domain.CartLine) error {
	sent := make(map[string]int, len(handed))
	for _, l := range handed {
		sent[l.ProductID] += l.Quantity
	}
	return e.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		if e.account != accountID {
			return lines, nil
		}
		out := lines[:0]
		for _, l := range lines {
			l.Quantity -= sent[l.ProductID]
			if l.Quantity > 0 {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

// mutate applies fn to a copy of the lines, then writes the local mirror and
// schedules a remote save when signed in.
func (e *Engine) mutate(ctx context.Context, fn func([]domain.CartLine) ([]domain.CartLine, error)) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.closed {
		return ErrClosed
	}

	next, err := fn(e.Lines())
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lines = next
	e.updatedAt = time.Now().UTC()
	signedIn := e.account != ""
	e.unsaved = e.unsaved || signedIn
	e.mu.Unlock()

	e.writeLocal(ctx)
	if signedIn {
		e.saver.Trigger()
	}
	return nil
}

func (e *Engine) Lines() []domain.CartLine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.CloneLines(e.lines)
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.Total(e.lines)
}

func (e *Engine) AccountID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.account
}

func (e *Engine) Snapshot() domain.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.Cart{
		AccountID: e.account,
		Lines:     domain.CloneLines(e.lines),
		UpdatedAt: e.updatedAt,
	}
}

// Observe applies one emission of the authentication signal.
func (e *Engine) Observe(ctx context.Context, state auth.State) error {
	if state.Authenticated() {
		return e.ReconcileOnSignIn(ctx, state.AccountID)
	}
	if e.AccountID() != "" {
		e.OnSignOut(ctx)
	}
	return nil
}

// ReconcileOnSignIn merges the remote cart of accountID into the local cart,
// once per transition to that account. A failed fetch leaves the local cart
// as it was and the transition pending, so the next signal retries it. Only
// an empty account id is reported as an error.
func (e *Engine) ReconcileOnSignIn(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return repository.ErrMissingAccount
	}

	e.mu.RLock()
	done := e.reconciled == accountID
	e.mu.RUnlock()
	if done {
		return nil
	}

	_, err, _ := e.sfg.Do(accountID, func() (interface{}, error) {
		return nil, e.reconcile(ctx, accountID)
	})
	return err
}

func (e *Engine) reconcile(ctx context.Context, accountID string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.reconciled == accountID {
		return nil
	}
	if e.account != "" {
		// switching accounts without a sign-out in between
		e.signOutLocked(ctx)
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.RemoteTimeout)
	remote, err := e.remote.FetchCart(fetchCtx, accountID)
	cancel()
	if err != nil {
		e.logger.Warn("remote cart fetch failed, keeping local cart",
			zap.String("account_id", accountID), zap.Error(err))
		return nil
	}

	local := e.Lines()
	merged := domain.Merge(local, remote)

	e.mu.Lock()
	e.lines = merged
	e.account = accountID
	e.reconciled = accountID
	e.updatedAt = time.Now().UTC()
	e.unsaved = true
	e.mu.Unlock()

	e.logger.Info("cart reconciled",
		zap.String("account_id", accountID),
		zap.Int("local_lines", len(local)),
		zap.Int("remote_lines", len(remote)),
		zap.Int("merged_lines", len(merged)))

	e.writeLocal(ctx)
	e.saver.Trigger()
	return nil
}

// OnSignOut clears the in-memory cart and the local mirror. The remote cart
// is not cleared; a save still pending for the signed-out account is sent in
// the background with the cart as it was before the sign-out.
func (e *Engine) OnSignOut(ctx context.Context) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.closed {
		return
	}
	e.signOutLocked(ctx)
}

func (e *Engine) signOutLocked(ctx context.Context) {
	e.mu.Lock()
	account := e.account
	lines := domain.CloneLines(e.lines)
	unsaved := e.unsaved
	e.lines = []domain.CartLine{}
	e.account = ""
	e.reconciled = ""
	e.updatedAt = time.Now().UTC()
	e.unsaved = false
	e.mu.Unlock()

	// A timer that already fired finds unsaved cleared and sends nothing, so
	// the snapshot taken here is the only save of these edits.
	e.saver.Cancel()
	if unsaved && account != "" {
		e.flushing.Add(1)
		go func() {
			defer e.flushing.Done()
			e.push(account, lines)
		}()
	}

	if err := e.mirror.Delete(ctx, e.mirrorKey); err != nil {
		e.logger.Warn("local mirror delete failed", zap.Error(err))
	}
	e.logger.Info("cart signed out", zap.String("account_id", account))
}

// Flush sends a pending remote save now.
func (e *Engine) Flush() {
	e.saver.Flush()
}

// Close sends any pending remote save and waits for saves in flight.
func (e *Engine) Close() {
	e.opMu.Lock()
	e.closed = true
	e.opMu.Unlock()

	e.saver.Close()
	e.flushing.Wait()
}

func (e *Engine) writeLocal(ctx context.Context) {
	raw, err := json.Marshal(e.Snapshot())
	if err != nil {
		e.logger.Error("local mirror encode failed", zap.Error(err))
		return
	}
	if err := e.mirror.Set(ctx, e.mirrorKey, raw); err != nil {
		e.logger.Warn("local mirror write failed", zap.Error(err))
	}
}

// saveLatest is the debounced save. It sends whatever the cart holds when it
// runs, unless a sign-out has already taken the edits.
func (e *Engine) saveLatest() {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	e.mu.Lock()
	account := e.account
	lines := domain.CloneLines(e.lines)
	take := e.unsaved && account != ""
	e.unsaved = false
	e.mu.Unlock()
	if !take {
		return
	}
	e.pushLocked(account, lines)
}

func (e *Engine) push(account string, lines []domain.CartLine) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	e.pushLocked(account, lines)
}

func (e *Engine) pushLocked(account string, lines []domain.CartLine) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.RemoteTimeout)
	defer cancel()

	start := time.Now()
	if err := e.remote.ReplaceCart(ctx, account, lines); err != nil {
		e.logger.Warn("remote cart save failed",
			zap.String("account_id", account), zap.Int("lines", len(lines)), zap.Error(err))
		return
	}
	e.logger.Debug("remote cart saved",
		zap.String("account_id", account),
		zap.Int("lines", len(lines)),
		zap.Duration("took", time.Since(start)))
}
