package scoring

import "fraudsim/internal/model"

const (
	defaultHour      = 12
	defaultDayOfWeek = 0 // Monday
)

// MapFeatures derives the scorer payload from a transaction. The status field
// carries whatever the rule stage already assigned, not the final verdict.
// Day-of-week is 0=Monday through 6=Sunday to match the scorer's training data.
func MapFeatures(txn *model.Transaction) model.ScoringFeatures {
	features := model.ScoringFeatures{
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		TransactionType: txn.TransactionType,
		Channel:         txn.Channel,
		Status:          string(txn.Status),
		Hour:            defaultHour,
		DayOfWeek:       defaultDayOfWeek,
	}
	if !txn.Timestamp.IsZero() {
		ts := txn.Timestamp.Time
		features.Hour = ts.Hour()
		// time.Weekday is 0=Sunday; shift to 0=Monday.
		features.DayOfWeek = (int(ts.Weekday()) + 6) % 7
	}
	return features
}
