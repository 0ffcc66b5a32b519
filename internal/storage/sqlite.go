package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fraudsim/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:fraudsim.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_id TEXT PRIMARY KEY,
			ts TIMESTAMP NOT NULL,
			currency TEXT,
			amount REAL NOT NULL,
			sender_account TEXT NOT NULL,
			receiver_account TEXT NOT NULL,
			transaction_type TEXT,
			channel TEXT,
			status TEXT NOT NULL,
			ip_address TEXT,
			location TEXT,
			fraud_flag INTEGER NOT NULL,
			fraud_reason TEXT,
			ml_score REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_sender_ts ON transactions(sender_account, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_status ON transactions(status)`,
		`CREATE TABLE IF NOT EXISTS account_lockouts (
			account_number TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			blocked_at TIMESTAMP,
			unblock_at TIMESTAMP,
			failed_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lockout_status ON account_lockouts(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Insert(ctx context.Context, t model.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.Timestamp.UTC(), t.Currency, t.Amount, t.SenderAccount, t.ReceiverAccount,
		t.TransactionType, t.Channel, string(t.Status), t.IPAddress, t.Location,
		t.FraudFlag, t.FraudReason, insertScore(t),
	)
	return err
}

func (s *sqliteStore) CountRecent(ctx context.Context, sender string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE sender_account = ? AND ts >= ?`,
		sender, time.Now().UTC().Add(-window),
	).Scan(&count)
	return count, err
}

func (s *sqliteStore) AvgAmountRecent(ctx context.Context, sender string, window time.Duration) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(amount) FROM transactions WHERE sender_account = ? AND ts >= ?`,
		sender, time.Now().UTC().Add(-window),
	).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	return avg.Float64, avg.Valid, nil
}

func (s *sqliteStore) CountRecentFailed(ctx context.Context, sender string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE sender_account = ? AND status = 'FAILED' AND ts >= ?`,
		sender, time.Now().UTC().Add(-window),
	).Scan(&count)
	return count, err
}

func (s *sqliteStore) FindAll(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions ORDER BY ts DESC`)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (s *sqliteStore) FindByStatus(ctx context.Context, status model.Status) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE status = ? ORDER BY ts DESC`, string(status))
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (s *sqliteStore) FindFraud(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE fraud_flag = 1 ORDER BY ts DESC`)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (s *sqliteStore) Summary(ctx context.Context) (model.DashboardSummary, error) {
	var out model.DashboardSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN fraud_flag = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END), 0)
		FROM transactions`,
	).Scan(&out.TotalTransactions, &out.FraudTransactions, &out.SuccessTransactions,
		&out.FailedTransactions, &out.PendingTransactions)
	if err != nil {
		return model.DashboardSummary{}, err
	}
	if out.TotalTransactions > 0 {
		out.FraudPercentage = float64(out.FraudTransactions) / float64(out.TotalTransactions) * 100.0
	}
	return out, nil
}

func (s *sqliteStore) ChannelWiseFraud(ctx context.Context) ([]model.ChannelFraud, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel,
			SUM(CASE WHEN fraud_flag = 1 THEN 1 ELSE 0 END) AS fraud_count,
			SUM(CASE WHEN fraud_flag = 0 THEN 1 ELSE 0 END) AS non_fraud_count,
			COUNT(*) AS total_count
		FROM transactions
		WHERE channel IS NOT NULL AND channel != ''
		GROUP BY channel
		ORDER BY fraud_count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ChannelFraud, 0)
	for rows.Next() {
		var c model.ChannelFraud
		if err := rows.Scan(&c.Channel, &c.FraudCount, &c.NonFraudCount, &c.TotalCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LocationWiseFraud(ctx context.Context) ([]model.LocationFraud, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT location,
			SUM(CASE WHEN fraud_flag = 1 THEN 1 ELSE 0 END) AS fraud_count,
			COUNT(*) AS total_transactions
		FROM transactions
		WHERE location IS NOT NULL AND location != ''
		GROUP BY location
		HAVING SUM(CASE WHEN fraud_flag = 1 THEN 1 ELSE 0 END) > 0
		ORDER BY fraud_count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.LocationFraud, 0)
	for rows.Next() {
		var l model.LocationFraud
		if err := rows.Scan(&l.Location, &l.FraudCount, &l.TotalTransactions); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FraudTrends(ctx context.Context) ([]model.FraudTrend, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(ts) AS transaction_date, COUNT(*) AS fraud_count
		FROM transactions
		WHERE fraud_flag = 1
		GROUP BY date(ts)
		ORDER BY transaction_date DESC`)
	if err != nil {
		return nil, err
	}
	return scanFraudTrends(rows)
}

func (s *sqliteStore) GetLockout(ctx context.Context, account string) (*model.LockoutState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account_number, status, blocked_at, unblock_at, failed_count
		FROM account_lockouts WHERE account_number = ?`, account)
	state, err := scanLockoutRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *sqliteStore) UpsertLockout(ctx context.Context, state model.LockoutState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account_lockouts (account_number, status, blocked_at, unblock_at, failed_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_number) DO UPDATE SET
			status = excluded.status,
			blocked_at = excluded.blocked_at,
			unblock_at = excluded.unblock_at,
			failed_count = excluded.failed_count`,
		state.AccountNumber, string(state.Status), nullTime(state.BlockedAt), nullTime(state.UnblockAt), state.FailedCount,
	)
	return err
}

func (s *sqliteStore) ResetLockout(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE account_lockouts
		SET status = 'ACTIVE', blocked_at = NULL, unblock_at = NULL, failed_count = 0
		WHERE account_number = ?`, account)
	return err
}

func (s *sqliteStore) ListBlocked(ctx context.Context) ([]model.LockoutState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_number, status, blocked_at, unblock_at, failed_count
		FROM account_lockouts WHERE status = 'BLOCKED' ORDER BY blocked_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanLockouts(rows)
}

func (s *sqliteStore) ListExpired(ctx context.Context, now time.Time) ([]model.LockoutState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_number, status, blocked_at, unblock_at, failed_count
		FROM account_lockouts
		WHERE status = 'BLOCKED' AND unblock_at IS NOT NULL AND unblock_at <= ?
		ORDER BY unblock_at ASC`, now.UTC())
	if err != nil {
		return nil, err
	}
	return scanLockouts(rows)
}
