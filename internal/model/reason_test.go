package model

import "testing"

func TestRenderReasonsNone(t *testing.T) {
	if got := RenderReasons(nil); got != "NONE" {
		t.Fatalf("expected NONE, got %q", got)
	}
	if got := RenderReasons([]ReasonCode{}); got != "NONE" {
		t.Fatalf("expected NONE, got %q", got)
	}
}

func TestRenderReasonsJoinsAlertText(t *testing.T) {
	got := RenderReasons([]ReasonCode{ReasonHighAmount, ReasonSuspiciousIP, ReasonHighVelocity})
	want := "High amount. Suspicious IP. High transaction velocity."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderReasonsSkipsUnknownCodes(t *testing.T) {
	got := RenderReasons([]ReasonCode{ReasonHighAmount, ReasonCode("BOGUS")})
	if got != "High amount." {
		t.Fatalf("expected unknown code skipped, got %q", got)
	}
}

func TestAppendMLHighRiskBare(t *testing.T) {
	if got := AppendMLHighRisk("NONE"); got != "ML_HIGH_RISK" {
		t.Fatalf("expected bare marker, got %q", got)
	}
	if got := AppendMLHighRisk(""); got != "ML_HIGH_RISK" {
		t.Fatalf("expected bare marker for empty reason, got %q", got)
	}
}

func TestAppendMLHighRiskSuffixed(t *testing.T) {
	got := AppendMLHighRisk("High amount. Suspicious IP.")
	want := "High amount. Suspicious IP. ML_HIGH_RISK."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHardFailReasonText(t *testing.T) {
	cases := map[ReasonCode]string{
		ReasonInvalidAmount: "Invalid amount",
		ReasonSelfTransfer:  "Sender and receiver same",
		ReasonBlocked:       "Account blocked due to multiple failed transactions",
	}
	for code, want := range cases {
		if got := ReasonText(code); got != want {
			t.Fatalf("%s: expected %q, got %q", code, want, got)
		}
	}
}
