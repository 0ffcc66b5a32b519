package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"fraudsim/internal/alerts"
	"fraudsim/internal/config"
	"fraudsim/internal/lockout"
	"fraudsim/internal/model"
	"fraudsim/internal/scoring"
	"fraudsim/internal/stats"
	"fraudsim/internal/storage"
)

func fixedScorer(score float64) scoring.Scorer {
	return scoring.ScorerFunc(func(context.Context, model.ScoringFeatures) (float64, error) {
		return score, nil
	})
}

func failingScorer() scoring.Scorer {
	return scoring.ScorerFunc(func(context.Context, model.ScoringFeatures) (float64, error) {
		return 0, errors.New("connection refused")
	})
}

func newTestPipeline(t *testing.T, scorer scoring.Scorer) (*Pipeline, *storage.Memory, *lockout.Manager) {
	t.Helper()
	cfg := config.DefaultConfig()
	store := storage.NewMemory()
	lockouts := lockout.NewManager(store, cfg.Lockout, nil)
	pipe := New(cfg, store, lockouts, scorer, nil, alerts.NewStore(100), stats.NewStore(), nil)
	return pipe, store, lockouts
}

func txn(id, sender, receiver string, amount float64) *model.Transaction {
	return &model.Transaction{
		TransactionID:   id,
		Timestamp:       model.NewTime(time.Now().UTC()),
		Currency:        "INR",
		Amount:          amount,
		SenderAccount:   sender,
		ReceiverAccount: receiver,
		TransactionType: "TRANSFER",
		Channel:         "MOBILE",
		IPAddress:       "10.0.0.1",
		Location:        "Mumbai",
	}
}

func TestCleanTransactionSucceeds(t *testing.T) {
	pipe, store, _ := newTestPipeline(t, fixedScorer(0.1))
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictClean {
		t.Fatalf("expected clean verdict, got %s", verdict.Kind)
	}
	if tx.Status != model.StatusSuccess || tx.FraudFlag != 0 {
		t.Fatalf("expected SUCCESS/0, got %s/%d", tx.Status, tx.FraudFlag)
	}
	if tx.FraudReason != "NONE" {
		t.Fatalf("expected reason NONE, got %q", tx.FraudReason)
	}
	if tx.MLScore == nil || *tx.MLScore != 0.1 {
		t.Fatalf("expected ml score 0.1, got %v", tx.MLScore)
	}
	all, _ := store.FindAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected 1 persisted transaction, got %d", len(all))
	}
}

func TestInvalidAmountFailsHard(t *testing.T) {
	pipe, store, _ := newTestPipeline(t, fixedScorer(0.99))
	tx := txn("t1", "AC1", "AC2", 0)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictHardFail {
		t.Fatalf("expected hard fail, got %s", verdict.Kind)
	}
	if tx.Status != model.StatusFailed || tx.FraudFlag != 0 {
		t.Fatalf("expected FAILED/0, got %s/%d", tx.Status, tx.FraudFlag)
	}
	if tx.FraudReason != "Invalid amount" {
		t.Fatalf("unexpected reason %q", tx.FraudReason)
	}
	if tx.MLScore != nil {
		t.Fatalf("scorer must not run on a hard fail")
	}
	// Hard validation failures do not count toward lockout.
	state, _ := store.GetLockout(context.Background(), "AC1")
	if state != nil && state.FailedCount != 0 {
		t.Fatalf("hard fail must not increment failed count, got %d", state.FailedCount)
	}
}

func TestSelfTransferFailsHard(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, fixedScorer(0.0))
	tx := txn("t1", "AC1", "AC1", 500)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictHardFail {
		t.Fatalf("expected hard fail, got %s", verdict.Kind)
	}
	if tx.FraudReason != "Sender and receiver same" {
		t.Fatalf("unexpected reason %q", tx.FraudReason)
	}
}

func TestBlockedSenderRejectedBeforeRules(t *testing.T) {
	pipe, _, lockouts := newTestPipeline(t, fixedScorer(0.0))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := lockouts.Update(ctx, "AC1", true); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(ctx, tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictBlocked {
		t.Fatalf("expected blocked verdict, got %s", verdict.Kind)
	}
	if tx.Status != model.StatusFailed {
		t.Fatalf("expected FAILED, got %s", tx.Status)
	}
	if tx.FraudReason != "Account blocked due to multiple failed transactions" {
		t.Fatalf("unexpected reason %q", tx.FraudReason)
	}
	if tx.MLScore != nil {
		t.Fatalf("scorer must not run for a blocked sender")
	}
	// The gate rejection itself must not extend the failure count.
	state, err := lockouts.GetStatus(ctx, "AC1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.FailedCount != 3 {
		t.Fatalf("expected failed count 3, got %d", state.FailedCount)
	}
}

func TestHighScoreFailsTransaction(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, fixedScorer(0.85))
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictScoredHighRisk {
		t.Fatalf("expected high-risk verdict, got %s", verdict.Kind)
	}
	if tx.Status != model.StatusFailed || tx.FraudFlag != 1 {
		t.Fatalf("expected FAILED/1, got %s/%d", tx.Status, tx.FraudFlag)
	}
	if tx.FraudReason != "ML_HIGH_RISK" {
		t.Fatalf("expected bare ML_HIGH_RISK, got %q", tx.FraudReason)
	}
}

func TestThresholdScoreFailsTransaction(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, fixedScorer(0.70))
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictScoredHighRisk {
		t.Fatalf("score equal to the threshold must fail, got %s", verdict.Kind)
	}
}

func TestLowScoreOverwritesPendingRuleVerdict(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, fixedScorer(0.2))
	tx := txn("t1", "AC1", "AC2", 150000)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictClean {
		t.Fatalf("expected clean verdict, got %s", verdict.Kind)
	}
	// Fusion replaces the PENDING rule verdict with SUCCESS and drops the
	// fraud flag, but the rule's reason text survives untouched.
	if tx.Status != model.StatusSuccess || tx.FraudFlag != 0 {
		t.Fatalf("expected SUCCESS/0, got %s/%d", tx.Status, tx.FraudFlag)
	}
	if tx.FraudReason != "High amount." {
		t.Fatalf("expected rule reason to survive, got %q", tx.FraudReason)
	}
	if len(verdict.RuleCodes) != 1 || verdict.RuleCodes[0] != model.ReasonHighAmount {
		t.Fatalf("verdict must carry the rule codes, got %v", verdict.RuleCodes)
	}
}

func TestRuleAndScoreCombine(t *testing.T) {
	pipe, store, _ := newTestPipeline(t, fixedScorer(0.9))
	ctx := context.Background()
	now := time.Now().UTC()
	// Three prior transactions in the window trip the velocity rule. Their
	// amounts keep the rolling average high enough that the spike rule stays
	// quiet (500000 is not above 3x 200000).
	for i := 0; i < 3; i++ {
		store.Insert(ctx, model.Transaction{
			TransactionID: "h" + string(rune('0'+i)),
			Timestamp:     model.NewTime(now.Add(-time.Minute)),
			SenderAccount: "AC1",
			Amount:        200000,
			Status:        model.StatusSuccess,
		})
	}
	tx := txn("t1", "AC1", "AC2", 500000)
	tx.IPAddress = "172.16.0.5"
	verdict, err := pipe.Process(ctx, tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictScoredHighRisk {
		t.Fatalf("expected high-risk verdict, got %s", verdict.Kind)
	}
	want := "High amount. Suspicious IP. High transaction velocity. ML_HIGH_RISK."
	if tx.FraudReason != want {
		t.Fatalf("expected reason %q, got %q", want, tx.FraudReason)
	}
	if tx.Status != model.StatusFailed || tx.FraudFlag != 1 {
		t.Fatalf("expected FAILED/1, got %s/%d", tx.Status, tx.FraudFlag)
	}
}

func TestScorerFailureFailsOpen(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, failingScorer())
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(context.Background(), tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if verdict.Kind != VerdictClean {
		t.Fatalf("scorer outage must not fail the transaction, got %s", verdict.Kind)
	}
	if tx.Status != model.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", tx.Status)
	}
	if tx.MLScore == nil || *tx.MLScore != 0.0 {
		t.Fatalf("expected default score 0.0, got %v", tx.MLScore)
	}
}

func TestVelocityRuleFromHistory(t *testing.T) {
	pipe, store, _ := newTestPipeline(t, fixedScorer(0.0))
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		store.Insert(ctx, model.Transaction{
			TransactionID: "h" + string(rune('0'+i)),
			Timestamp:     model.NewTime(now.Add(-time.Minute)),
			SenderAccount: "AC1",
			Amount:        500,
			Status:        model.StatusSuccess,
		})
	}
	tx := txn("t1", "AC1", "AC2", 500)
	verdict, err := pipe.Process(ctx, tx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var sawVelocity bool
	for _, c := range verdict.RuleCodes {
		if c == model.ReasonHighVelocity {
			sawVelocity = true
		}
	}
	if !sawVelocity {
		t.Fatalf("expected velocity rule to fire, codes %v", verdict.RuleCodes)
	}
	// Score stayed low, so the final status is still SUCCESS.
	if tx.Status != model.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", tx.Status)
	}
	if tx.FraudReason != "High transaction velocity." {
		t.Fatalf("unexpected reason %q", tx.FraudReason)
	}
}

func TestFailedOutcomeFeedsLockout(t *testing.T) {
	pipe, _, lockouts := newTestPipeline(t, fixedScorer(0.9))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		tx := txn("t"+string(rune('0'+i)), "AC1", "AC2", 500)
		if _, err := pipe.Process(ctx, tx); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	state, err := lockouts.GetStatus(ctx, "AC1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.FailedCount != 2 || state.Status != model.LockActive {
		t.Fatalf("expected 2 failures still active, got %d/%s", state.FailedCount, state.Status)
	}
	tx := txn("t3", "AC1", "AC2", 500)
	if _, err := pipe.Process(ctx, tx); err != nil {
		t.Fatalf("process: %v", err)
	}
	state, err = lockouts.GetStatus(ctx, "AC1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.Status != model.LockBlocked {
		t.Fatalf("expected account blocked after third failure, got %s", state.Status)
	}
}

func TestMissingTimestampDefaultsToNow(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, fixedScorer(0.0))
	fixed := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	pipe.SetClock(func() time.Time { return fixed })
	tx := txn("t1", "AC1", "AC2", 500)
	tx.Timestamp = model.Time{}
	if _, err := pipe.Process(context.Background(), tx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !tx.Timestamp.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, tx.Timestamp.Time)
	}
}

func TestFraudAlertRaisedOnFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	store := storage.NewMemory()
	lockouts := lockout.NewManager(store, cfg.Lockout, nil)
	alertStore := alerts.NewStore(10)
	pipe := New(cfg, store, lockouts, fixedScorer(0.9), nil, alertStore, stats.NewStore(), nil)

	tx := txn("t1", "AC1", "AC2", 500)
	if _, err := pipe.Process(context.Background(), tx); err != nil {
		t.Fatalf("process: %v", err)
	}
	got := alertStore.List(0)
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].TransactionID != "t1" || got[0].MLScore != 0.9 {
		t.Fatalf("unexpected alert %+v", got[0])
	}
}

func TestStatsRecorded(t *testing.T) {
	cfg := config.DefaultConfig()
	store := storage.NewMemory()
	lockouts := lockout.NewManager(store, cfg.Lockout, nil)
	statsStore := stats.NewStore()
	pipe := New(cfg, store, lockouts, fixedScorer(0.9), nil, alerts.NewStore(10), statsStore, nil)

	if _, err := pipe.Process(context.Background(), txn("t1", "AC1", "AC2", 500)); err != nil {
		t.Fatalf("process: %v", err)
	}
	counts := statsStore.Snapshot()
	if counts.Total != 1 || counts.Failed != 1 || counts.Fraud != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}
