package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fraudsim/internal/config"
	"fraudsim/internal/model"
	"fraudsim/internal/storage"
)

// Manager owns the per-account lockout state machine: ACTIVE accounts
// accumulate a failure count, BLOCKED accounts reject transactions until
// their unblock time passes. Unblocking is lazy: it happens on the next read
// rather than through a background sweep.
//
// The failure count is not a sliding window. It only resets on a successful
// transaction or an unblock; otherwise it accumulates without decay.
type Manager struct {
	store     storage.LockoutStore
	logger    *slog.Logger
	threshold int
	duration  time.Duration
	locks     keyedMutex
	now       func() time.Time
}

func NewManager(store storage.LockoutStore, cfg config.LockoutConfig, logger *slog.Logger) *Manager {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}
	duration := cfg.BlockDuration
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &Manager{
		store:     store,
		logger:    logger,
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// SetClock overrides the manager's clock; test hook only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// GetStatus loads the account's lockout record, creating a fresh ACTIVE one if
// none exists. A BLOCKED record whose unblock time has strictly passed is
// reset in the store and returned as ACTIVE; repeating the read after expiry
// keeps returning the same reset view.
func (m *Manager) GetStatus(ctx context.Context, account string) (model.LockoutState, error) {
	state, err := m.store.GetLockout(ctx, account)
	if err != nil {
		return model.LockoutState{}, fmt.Errorf("load lockout record: %w", err)
	}
	if state == nil {
		fresh := model.LockoutState{AccountNumber: account, Status: model.LockActive}
		if err := m.store.UpsertLockout(ctx, fresh); err != nil {
			return model.LockoutState{}, fmt.Errorf("create lockout record: %w", err)
		}
		return fresh, nil
	}

	if state.Status == model.LockBlocked && state.UnblockAt != nil && m.now().After(*state.UnblockAt) {
		if m.logger != nil {
			m.logger.Info("auto-unblocking account", "account", account)
		}
		if err := m.store.ResetLockout(ctx, account); err != nil {
			return model.LockoutState{}, fmt.Errorf("reset lockout record: %w", err)
		}
		state.Status = model.LockActive
		state.BlockedAt = nil
		state.UnblockAt = nil
		state.FailedCount = 0
	}
	return *state, nil
}

func (m *Manager) IsBlocked(ctx context.Context, account string) (bool, error) {
	state, err := m.GetStatus(ctx, account)
	if err != nil {
		return false, err
	}
	return state.Status == model.LockBlocked, nil
}

// Update records one transaction outcome for the sender. A failure increments
// the count, a success resets it to zero; crossing the threshold while not
// already BLOCKED stamps the block window. The record is persisted whether or
// not a transition occurred. Updates for one account are serialized so
// concurrent transactions cannot lose increments.
func (m *Manager) Update(ctx context.Context, account string, failed bool) error {
	unlock := m.locks.lock(account)
	defer unlock()

	state, err := m.GetStatus(ctx, account)
	if err != nil {
		return err
	}

	if failed {
		state.FailedCount++
	} else {
		state.FailedCount = 0
	}

	if state.FailedCount >= m.threshold && state.Status != model.LockBlocked {
		now := m.now().UTC()
		until := now.Add(m.duration)
		state.Status = model.LockBlocked
		state.BlockedAt = &now
		state.UnblockAt = &until
		if m.logger != nil {
			m.logger.Warn("account blocked after repeated failures",
				"account", account,
				"failed_count", state.FailedCount,
				"unblock_at", until,
			)
		}
	}

	if err := m.store.UpsertLockout(ctx, state); err != nil {
		return fmt.Errorf("persist lockout record: %w", err)
	}
	return nil
}

// ListBlocked sweeps expired blocks back to ACTIVE, then returns the remaining
// blocked accounts, most recently blocked first.
func (m *Manager) ListBlocked(ctx context.Context) ([]model.LockoutState, error) {
	expired, err := m.store.ListExpired(ctx, m.now())
	if err != nil {
		return nil, fmt.Errorf("list expired lockouts: %w", err)
	}
	for _, state := range expired {
		if m.logger != nil {
			m.logger.Info("auto-unblocking expired account", "account", state.AccountNumber)
		}
		if err := m.store.ResetLockout(ctx, state.AccountNumber); err != nil {
			return nil, fmt.Errorf("reset expired lockout: %w", err)
		}
	}
	blocked, err := m.store.ListBlocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blocked accounts: %w", err)
	}
	return blocked, nil
}
