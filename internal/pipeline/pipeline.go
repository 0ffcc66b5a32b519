package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fraudsim/internal/alerts"
	"fraudsim/internal/config"
	"fraudsim/internal/lockout"
	"fraudsim/internal/model"
	"fraudsim/internal/notify"
	"fraudsim/internal/rules"
	"fraudsim/internal/scoring"
	"fraudsim/internal/stats"
	"fraudsim/internal/storage"
)

type VerdictKind string

const (
	// VerdictBlocked: rejected at the lockout gate, nothing else ran.
	VerdictBlocked VerdictKind = "blocked"
	// VerdictHardFail: rejected by input validation, no scoring or lockout update.
	VerdictHardFail VerdictKind = "hard_fail"
	// VerdictRuleFlagged: rules fired and set PENDING; only ever an
	// intermediate state, fusion always replaces it.
	VerdictRuleFlagged VerdictKind = "rule_flagged"
	// VerdictScoredHighRisk: the scorer pushed the transaction to FAILED.
	VerdictScoredHighRisk VerdictKind = "scored_high_risk"
	// VerdictClean: final SUCCESS, regardless of rule alerts raised earlier.
	VerdictClean VerdictKind = "clean"
)

// Verdict is the pipeline's tagged decision. RuleCodes carries whatever the
// rule stage raised even when the final kind discards them, so callers can see
// why the reason text is non-empty on a SUCCESS transaction.
type Verdict struct {
	Kind      VerdictKind
	RuleCodes []model.ReasonCode
	Score     float64
}

// Pipeline decides one transaction at a time: lockout gate, hard validation,
// deterministic rules over recent history, external score, fusion, persist,
// alert, lockout update. Steps run strictly in that order; only the early
// gates skip the rest.
//
// Every dependency except the final persistence write degrades to a safe
// default on failure. A history query error evaluates rules on zero signals, a
// scorer error scores 0.0, a notifier or lockout-update error is logged and
// swallowed. Only the transaction insert propagates to the caller, because
// without a durable record there is no outcome to report.
type Pipeline struct {
	history   storage.HistoryStore
	lockouts  *lockout.Manager
	evaluator *rules.Evaluator
	scorer    scoring.Scorer
	notifier  notify.Notifier
	alerts    *alerts.Store
	stats     *stats.Store
	logger    *slog.Logger

	window        time.Duration
	riskThreshold float64
	now           func() time.Time
}

func New(
	cfg *config.Config,
	history storage.HistoryStore,
	lockouts *lockout.Manager,
	scorer scoring.Scorer,
	notifier notify.Notifier,
	alertStore *alerts.Store,
	statsStore *stats.Store,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		history:       history,
		lockouts:      lockouts,
		evaluator:     rules.NewEvaluator(cfg.Rules),
		scorer:        scorer,
		notifier:      notifier,
		alerts:        alertStore,
		stats:         statsStore,
		logger:        logger,
		window:        cfg.Rules.HistoryWindow,
		riskThreshold: cfg.Scorer.HighRiskThreshold,
		now:           time.Now,
	}
}

// SetClock overrides the pipeline's clock; test hook only.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Run drains a transaction channel until the context is cancelled. Each
// transaction is processed synchronously end to end.
func (p *Pipeline) Run(ctx context.Context, in <-chan model.Transaction) {
	go func() {
		for {
			select {
			case txn := <-in:
				if _, err := p.Process(ctx, &txn); err != nil && p.logger != nil {
					p.logger.Error("transaction processing failed",
						"transaction_id", txn.TransactionID, "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Process mutates the transaction's decision fields and persists it exactly
// once. The returned error is non-nil only when the persistence write failed.
func (p *Pipeline) Process(ctx context.Context, txn *model.Transaction) (Verdict, error) {
	if txn.Timestamp.IsZero() {
		txn.Timestamp = model.NewTime(p.now())
	}

	// Lockout gate. A blocked sender fails immediately: no rules, no scorer,
	// and no lockout update either.
	if p.isBlocked(ctx, txn.SenderAccount) {
		p.finalize(txn, model.StatusFailed, 0, model.ReasonText(model.ReasonBlocked))
		verdict := Verdict{Kind: VerdictBlocked}
		return verdict, p.persist(ctx, txn)
	}

	// Hard validation. Neither case touches lockout state or the scorer.
	if txn.Amount <= 0 {
		p.finalize(txn, model.StatusFailed, 0, model.ReasonText(model.ReasonInvalidAmount))
		return Verdict{Kind: VerdictHardFail, RuleCodes: []model.ReasonCode{model.ReasonInvalidAmount}}, p.persist(ctx, txn)
	}
	if txn.SenderAccount == txn.ReceiverAccount {
		p.finalize(txn, model.StatusFailed, 0, model.ReasonText(model.ReasonSelfTransfer))
		return Verdict{Kind: VerdictHardFail, RuleCodes: []model.ReasonCode{model.ReasonSelfTransfer}}, p.persist(ctx, txn)
	}

	// Rule stage.
	signals := p.fetchSignals(ctx, txn.SenderAccount)
	codes := p.evaluator.Evaluate(txn, signals)
	if len(codes) > 0 {
		p.finalize(txn, model.StatusPending, 1, model.RenderReasons(codes))
	} else {
		p.finalize(txn, model.StatusSuccess, 0, model.RenderReasons(nil))
	}

	// Scoring stage. Features carry the status the rule stage just assigned.
	// Any scorer failure fails open to the default probability.
	features := scoring.MapFeatures(txn)
	score, err := p.scorer.Score(ctx, features)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("scorer unavailable, using default score",
				"transaction_id", txn.TransactionID, "err", err)
		}
		score = scoring.DefaultProbability
	}
	txn.MLScore = &score

	// Fusion. The score can only upgrade risk; below the threshold the
	// transaction succeeds outright, overwriting a PENDING rule verdict while
	// leaving the accumulated reason text as-is.
	verdict := Verdict{Kind: VerdictClean, RuleCodes: codes, Score: score}
	if score >= p.riskThreshold && txn.Status != model.StatusFailed {
		verdict.Kind = VerdictScoredHighRisk
		txn.Status = model.StatusFailed
		txn.FraudFlag = 1
		txn.FraudReason = model.AppendMLHighRisk(txn.FraudReason)
	} else {
		txn.Status = model.StatusSuccess
		txn.FraudFlag = 0
	}

	if err := p.persist(ctx, txn); err != nil {
		return verdict, err
	}

	if txn.FraudFlag == 1 {
		p.raiseAlert(ctx, txn)
	}

	if err := p.lockouts.Update(ctx, txn.SenderAccount, txn.Status == model.StatusFailed); err != nil {
		if p.logger != nil {
			p.logger.Error("lockout update failed",
				"account", txn.SenderAccount, "err", err)
		}
	}

	return verdict, nil
}

func (p *Pipeline) finalize(txn *model.Transaction, status model.Status, flag int, reason string) {
	txn.Status = status
	txn.FraudFlag = flag
	txn.FraudReason = reason
}

func (p *Pipeline) isBlocked(ctx context.Context, account string) bool {
	blocked, err := p.lockouts.IsBlocked(ctx, account)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("lockout check failed, treating account as active",
				"account", account, "err", err)
		}
		return false
	}
	return blocked
}

// fetchSignals reads the sender's recent history. Each query degrades to its
// zero value on error so a flaky history read cannot abort the pipeline.
func (p *Pipeline) fetchSignals(ctx context.Context, sender string) rules.Signals {
	var sig rules.Signals
	velocity, err := p.history.CountRecent(ctx, sender, p.window)
	if err != nil {
		p.signalDegraded("count recent", sender, err)
	} else {
		sig.Velocity = velocity
	}
	avg, ok, err := p.history.AvgAmountRecent(ctx, sender, p.window)
	if err != nil {
		p.signalDegraded("avg amount", sender, err)
	} else {
		sig.AvgAmount = avg
		sig.HasAvg = ok
	}
	failed, err := p.history.CountRecentFailed(ctx, sender, p.window)
	if err != nil {
		p.signalDegraded("count recent failed", sender, err)
	} else {
		sig.RecentFailed = failed
	}
	return sig
}

func (p *Pipeline) signalDegraded(query, sender string, err error) {
	if p.logger != nil {
		p.logger.Warn("history query failed, using zero signal",
			"query", query, "account", sender, "err", err)
	}
}

func (p *Pipeline) persist(ctx context.Context, txn *model.Transaction) error {
	if err := p.history.Insert(ctx, *txn); err != nil {
		return fmt.Errorf("persist transaction %s: %w", txn.TransactionID, err)
	}
	if p.stats != nil {
		p.stats.Record(txn.Status, txn.FraudFlag)
	}
	return nil
}

func (p *Pipeline) raiseAlert(ctx context.Context, txn *model.Transaction) {
	var score float64
	if txn.MLScore != nil {
		score = *txn.MLScore
	}
	if p.alerts != nil {
		p.alerts.Add(model.FraudAlert{
			Timestamp:     p.now().UTC(),
			TransactionID: txn.TransactionID,
			SenderAccount: txn.SenderAccount,
			Status:        txn.Status,
			Reason:        txn.FraudReason,
			MLScore:       score,
		})
	}
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SendFraudAlert(ctx, *txn); err != nil && p.logger != nil {
		p.logger.Error("fraud alert delivery failed",
			"transaction_id", txn.TransactionID, "err", err)
	}
}
