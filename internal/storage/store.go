package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"fraudsim/internal/config"
	"fraudsim/internal/model"
)

// HistoryStore persists finalized transactions and answers the recent-activity
// queries the rule stage depends on. Insert is append-only: each transaction is
// written exactly once, after its decision is final.
type HistoryStore interface {
	Insert(ctx context.Context, txn model.Transaction) error
	CountRecent(ctx context.Context, sender string, window time.Duration) (int, error)
	AvgAmountRecent(ctx context.Context, sender string, window time.Duration) (float64, bool, error)
	CountRecentFailed(ctx context.Context, sender string, window time.Duration) (int, error)
	FindAll(ctx context.Context) ([]model.Transaction, error)
	FindByStatus(ctx context.Context, status model.Status) ([]model.Transaction, error)
	FindFraud(ctx context.Context) ([]model.Transaction, error)
	Summary(ctx context.Context) (model.DashboardSummary, error)
	ChannelWiseFraud(ctx context.Context) ([]model.ChannelFraud, error)
	LocationWiseFraud(ctx context.Context) ([]model.LocationFraud, error)
	FraudTrends(ctx context.Context) ([]model.FraudTrend, error)
}

// LockoutStore persists one lockout record per account.
type LockoutStore interface {
	GetLockout(ctx context.Context, account string) (*model.LockoutState, error)
	UpsertLockout(ctx context.Context, state model.LockoutState) error
	ResetLockout(ctx context.Context, account string) error
	ListBlocked(ctx context.Context) ([]model.LockoutState, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.LockoutState, error)
}

type Store interface {
	HistoryStore
	LockoutStore
	Init(ctx context.Context) error
	Close() error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

const txnColumns = `transaction_id, ts, currency, amount, sender_account, receiver_account,
	transaction_type, channel, status, ip_address, location, fraud_flag, fraud_reason, ml_score`

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()
	out := make([]model.Transaction, 0)
	for rows.Next() {
		var t model.Transaction
		var ts time.Time
		var status string
		var mlScore sql.NullFloat64
		var ip, location, reason sql.NullString
		if err := rows.Scan(
			&t.TransactionID, &ts, &t.Currency, &t.Amount, &t.SenderAccount, &t.ReceiverAccount,
			&t.TransactionType, &t.Channel, &status, &ip, &location, &t.FraudFlag, &reason, &mlScore,
		); err != nil {
			return nil, err
		}
		t.Timestamp = model.NewTime(ts)
		t.Status = model.Status(status)
		t.IPAddress = ip.String
		t.Location = location.String
		t.FraudReason = reason.String
		if mlScore.Valid {
			score := mlScore.Float64
			t.MLScore = &score
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanFraudTrends(rows *sql.Rows) ([]model.FraudTrend, error) {
	defer rows.Close()
	out := make([]model.FraudTrend, 0)
	for rows.Next() {
		var t model.FraudTrend
		if err := rows.Scan(&t.Date, &t.FraudCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanLockouts(rows *sql.Rows) ([]model.LockoutState, error) {
	defer rows.Close()
	out := make([]model.LockoutState, 0)
	for rows.Next() {
		state, err := scanLockoutRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLockoutRow(row rowScanner) (model.LockoutState, error) {
	var state model.LockoutState
	var status string
	var blockedAt, unblockAt sql.NullTime
	if err := row.Scan(&state.AccountNumber, &status, &blockedAt, &unblockAt, &state.FailedCount); err != nil {
		return model.LockoutState{}, err
	}
	state.Status = model.LockStatus(status)
	if blockedAt.Valid {
		t := blockedAt.Time
		state.BlockedAt = &t
	}
	if unblockAt.Valid {
		t := unblockAt.Time
		state.UnblockAt = &t
	}
	return state, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func insertScore(t model.Transaction) float64 {
	if t.MLScore == nil {
		return 0.0
	}
	return *t.MLScore
}
