package ingest

import (
	"context"
	"log/slog"

	"fraudsim/internal/model"
)

// SendNonBlocking drops the transaction instead of stalling the source when
// the pipeline channel is full.
func SendNonBlocking(ctx context.Context, out chan<- model.Transaction, txn model.Transaction, logger *slog.Logger) bool {
	select {
	case out <- txn:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("transaction channel full, dropping transaction",
				"transaction_id", txn.TransactionID, "sender", txn.SenderAccount)
		}
		return false
	}
}
