package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"fraudsim/internal/model"
)

// Memory is an in-process Store used by tests and by deployments that do not
// need durability. It mirrors the SQL stores' query semantics, including the
// trailing-window history lookups.
type Memory struct {
	mu           sync.RWMutex
	transactions []model.Transaction
	lockouts     map[string]model.LockoutState
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		lockouts: make(map[string]model.LockoutState),
		now:      time.Now,
	}
}

// SetClock overrides the window-query clock; test hook only.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Memory) Init(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) Insert(ctx context.Context, txn model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, txn)
	return nil
}

func (m *Memory) CountRecent(ctx context.Context, sender string, window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().UTC().Add(-window)
	count := 0
	for _, t := range m.transactions {
		if t.SenderAccount == sender && !t.Timestamp.UTC().Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) AvgAmountRecent(ctx context.Context, sender string, window time.Duration) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().UTC().Add(-window)
	var sum float64
	var count int
	for _, t := range m.transactions {
		if t.SenderAccount == sender && !t.Timestamp.UTC().Before(cutoff) {
			sum += t.Amount
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float64(count), true, nil
}

func (m *Memory) CountRecentFailed(ctx context.Context, sender string, window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().UTC().Add(-window)
	count := 0
	for _, t := range m.transactions {
		if t.SenderAccount == sender && t.Status == model.StatusFailed && !t.Timestamp.UTC().Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) FindAll(ctx context.Context) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(model.Transaction) bool { return true }), nil
}

func (m *Memory) FindByStatus(ctx context.Context, status model.Status) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(t model.Transaction) bool { return t.Status == status }), nil
}

func (m *Memory) FindFraud(ctx context.Context) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(t model.Transaction) bool { return t.FraudFlag == 1 }), nil
}

// filter returns matches ordered newest first; callers must hold the lock.
func (m *Memory) filter(keep func(model.Transaction) bool) []model.Transaction {
	out := make([]model.Transaction, 0)
	for _, t := range m.transactions {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp.Time)
	})
	return out
}

func (m *Memory) Summary(ctx context.Context) (model.DashboardSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out model.DashboardSummary
	for _, t := range m.transactions {
		out.TotalTransactions++
		if t.FraudFlag == 1 {
			out.FraudTransactions++
		}
		switch t.Status {
		case model.StatusSuccess:
			out.SuccessTransactions++
		case model.StatusFailed:
			out.FailedTransactions++
		case model.StatusPending:
			out.PendingTransactions++
		}
	}
	if out.TotalTransactions > 0 {
		out.FraudPercentage = float64(out.FraudTransactions) / float64(out.TotalTransactions) * 100.0
	}
	return out, nil
}

func (m *Memory) ChannelWiseFraud(ctx context.Context) ([]model.ChannelFraud, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byChannel := make(map[string]*model.ChannelFraud)
	for _, t := range m.transactions {
		if t.Channel == "" {
			continue
		}
		c, ok := byChannel[t.Channel]
		if !ok {
			c = &model.ChannelFraud{Channel: t.Channel}
			byChannel[t.Channel] = c
		}
		c.TotalCount++
		if t.FraudFlag == 1 {
			c.FraudCount++
		} else {
			c.NonFraudCount++
		}
	}
	out := make([]model.ChannelFraud, 0, len(byChannel))
	for _, c := range byChannel {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FraudCount > out[j].FraudCount })
	return out, nil
}

func (m *Memory) LocationWiseFraud(ctx context.Context) ([]model.LocationFraud, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byLocation := make(map[string]*model.LocationFraud)
	for _, t := range m.transactions {
		if t.Location == "" {
			continue
		}
		l, ok := byLocation[t.Location]
		if !ok {
			l = &model.LocationFraud{Location: t.Location}
			byLocation[t.Location] = l
		}
		l.TotalTransactions++
		if t.FraudFlag == 1 {
			l.FraudCount++
		}
	}
	out := make([]model.LocationFraud, 0, len(byLocation))
	for _, l := range byLocation {
		if l.FraudCount > 0 {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FraudCount > out[j].FraudCount })
	return out, nil
}

func (m *Memory) FraudTrends(ctx context.Context) ([]model.FraudTrend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDay := make(map[string]int64)
	for _, t := range m.transactions {
		if t.FraudFlag != 1 {
			continue
		}
		byDay[t.Timestamp.UTC().Format("2006-01-02")]++
	}
	out := make([]model.FraudTrend, 0, len(byDay))
	for day, count := range byDay {
		out = append(out, model.FraudTrend{Date: day, FraudCount: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *Memory) GetLockout(ctx context.Context, account string) (*model.LockoutState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.lockouts[account]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (m *Memory) UpsertLockout(ctx context.Context, state model.LockoutState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockouts[state.AccountNumber] = state
	return nil
}

func (m *Memory) ResetLockout(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.lockouts[account]
	if !ok {
		return nil
	}
	state.Status = model.LockActive
	state.BlockedAt = nil
	state.UnblockAt = nil
	state.FailedCount = 0
	m.lockouts[account] = state
	return nil
}

func (m *Memory) ListBlocked(ctx context.Context) ([]model.LockoutState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.LockoutState, 0)
	for _, state := range m.lockouts {
		if state.Status == model.LockBlocked {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		var ti, tj time.Time
		if out[i].BlockedAt != nil {
			ti = *out[i].BlockedAt
		}
		if out[j].BlockedAt != nil {
			tj = *out[j].BlockedAt
		}
		return ti.After(tj)
	})
	return out, nil
}

func (m *Memory) ListExpired(ctx context.Context, now time.Time) ([]model.LockoutState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.LockoutState, 0)
	for _, state := range m.lockouts {
		if state.Status == model.LockBlocked && state.UnblockAt != nil && !state.UnblockAt.After(now) {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UnblockAt.Before(*out[j].UnblockAt)
	})
	return out, nil
}
