package rules

import (
	"strings"

	"fraudsim/internal/config"
	"fraudsim/internal/model"
)

// Signals carries the sender's recent history, already fetched by the caller.
// HasAvg is false when the sender had no transactions inside the window.
type Signals struct {
	Velocity     int
	AvgAmount    float64
	HasAvg       bool
	RecentFailed int
}

// Evaluator produces deterministic alert codes from a transaction and its
// account history. It performs no I/O; every signal it needs is an argument.
type Evaluator struct {
	cfg config.RulesConfig
}

func NewEvaluator(cfg config.RulesConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the triggered alert codes in a fixed order. Multiple rules
// may fire on one transaction; an empty result means no rule concern.
func (e *Evaluator) Evaluate(txn *model.Transaction, sig Signals) []model.ReasonCode {
	var codes []model.ReasonCode
	if txn.Amount > e.cfg.HighAmountThreshold {
		codes = append(codes, model.ReasonHighAmount)
	}
	if e.cfg.SuspiciousIPPrefix != "" && strings.HasPrefix(txn.IPAddress, e.cfg.SuspiciousIPPrefix) {
		codes = append(codes, model.ReasonSuspiciousIP)
	}
	if sig.Velocity >= e.cfg.VelocityThreshold {
		codes = append(codes, model.ReasonHighVelocity)
	}
	if sig.HasAvg && sig.AvgAmount > 0 && txn.Amount > sig.AvgAmount*e.cfg.SpikeMultiplier {
		codes = append(codes, model.ReasonAmountSpike)
	}
	if sig.RecentFailed >= e.cfg.FailedAttemptsThreshold {
		codes = append(codes, model.ReasonPriorFailures)
	}
	return codes
}
