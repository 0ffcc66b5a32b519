package model

import "time"

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

type LockStatus string

const (
	LockActive  LockStatus = "ACTIVE"
	LockBlocked LockStatus = "BLOCKED"
)

// Transaction is the unit of work. Callers supply identity and payment fields;
// the decision pipeline owns the status, fraud flag, reason and ML score.
type Transaction struct {
	TransactionID   string   `json:"transactionId"`
	Timestamp       Time     `json:"timestamp"`
	Currency        string   `json:"currency"`
	Amount          float64  `json:"amount"`
	SenderAccount   string   `json:"senderAccount"`
	ReceiverAccount string   `json:"receiverAccount"`
	TransactionType string   `json:"transactionType"`
	Channel         string   `json:"channel"`
	IPAddress       string   `json:"ipAddress,omitempty"`
	Location        string   `json:"location,omitempty"`
	Status          Status   `json:"status,omitempty"`
	FraudFlag       int      `json:"fraudFlag"`
	FraudReason     string   `json:"fraudReason,omitempty"`
	MLScore         *float64 `json:"mlScore,omitempty"`
}

// LockoutState is the per-account lockout record. BLOCKED implies both
// timestamps are set and UnblockAt = BlockedAt + block duration.
type LockoutState struct {
	AccountNumber string     `json:"accountNumber"`
	Status        LockStatus `json:"status"`
	BlockedAt     *time.Time `json:"blockedAt,omitempty"`
	UnblockAt     *time.Time `json:"unblockAt,omitempty"`
	FailedCount   int        `json:"failedCount"`
}

// ScoringFeatures is the flat payload sent to the external scorer. The field
// set and json names must match the scorer's model input exactly.
type ScoringFeatures struct {
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionType string  `json:"transactionType"`
	Channel         string  `json:"channel"`
	Status          string  `json:"status"`
	Hour            int     `json:"hour"`
	DayOfWeek       int     `json:"day_of_week"`
}

// FraudAlert is the in-memory record of a flagged transaction.
type FraudAlert struct {
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transactionId"`
	SenderAccount string    `json:"senderAccount"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason"`
	MLScore       float64   `json:"mlScore"`
}

type DashboardSummary struct {
	TotalTransactions   int64   `json:"totalTransactions"`
	FraudTransactions   int64   `json:"fraudTransactions"`
	SuccessTransactions int64   `json:"successTransactions"`
	FailedTransactions  int64   `json:"failedTransactions"`
	PendingTransactions int64   `json:"pendingTransactions"`
	FraudPercentage     float64 `json:"fraudPercentage"`
}

type ChannelFraud struct {
	Channel       string `json:"channel"`
	FraudCount    int64  `json:"fraudCount"`
	NonFraudCount int64  `json:"nonFraudCount"`
	TotalCount    int64  `json:"totalCount"`
}

// FraudTrend is one day's flagged-transaction count, newest day first in
// listings.
type FraudTrend struct {
	Date       string `json:"date"`
	FraudCount int64  `json:"fraudCount"`
}

type LocationFraud struct {
	Location          string `json:"location"`
	FraudCount        int64  `json:"fraudCount"`
	TotalTransactions int64  `json:"totalTransactions"`
}
