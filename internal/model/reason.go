package model

import "strings"

// ReasonCode tags one decision signal. Codes are kept structured on the
// verdict and rendered to the persisted free-text reason at the end, so the
// literal wire strings live in exactly one place.
type ReasonCode string

const (
	ReasonHighAmount    ReasonCode = "HIGH_AMOUNT"
	ReasonSuspiciousIP  ReasonCode = "SUSPICIOUS_IP"
	ReasonHighVelocity  ReasonCode = "HIGH_VELOCITY"
	ReasonAmountSpike   ReasonCode = "AMOUNT_SPIKE"
	ReasonPriorFailures ReasonCode = "PRIOR_FAILURES"
	ReasonMLHighRisk    ReasonCode = "ML_HIGH_RISK"
	ReasonInvalidAmount ReasonCode = "INVALID_AMOUNT"
	ReasonSelfTransfer  ReasonCode = "SELF_TRANSFER"
	ReasonBlocked       ReasonCode = "ACCOUNT_BLOCKED"
)

const reasonNone = "NONE"

var reasonText = map[ReasonCode]string{
	ReasonHighAmount:    "High amount.",
	ReasonSuspiciousIP:  "Suspicious IP.",
	ReasonHighVelocity:  "High transaction velocity.",
	ReasonAmountSpike:   "Rapid amount spike.",
	ReasonPriorFailures: "Multiple failed attempts before success.",
	ReasonInvalidAmount: "Invalid amount",
	ReasonSelfTransfer:  "Sender and receiver same",
	ReasonBlocked:       "Account blocked due to multiple failed transactions",
}

// RenderReasons joins the rule alert strings, or returns the NONE marker when
// no rule fired.
func RenderReasons(codes []ReasonCode) string {
	if len(codes) == 0 {
		return reasonNone
	}
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		if text, ok := reasonText[c]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// AppendMLHighRisk upgrades an already-rendered reason with the high-risk
// marker: bare "ML_HIGH_RISK" when no rule fired, appended " ML_HIGH_RISK."
// otherwise.
func AppendMLHighRisk(rendered string) string {
	if rendered == reasonNone || rendered == "" {
		return string(ReasonMLHighRisk)
	}
	return rendered + " " + string(ReasonMLHighRisk) + "."
}

// ReasonText returns the wire string for one code.
func ReasonText(code ReasonCode) string {
	return reasonText[code]
}
