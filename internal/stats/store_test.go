package stats

import (
	"testing"

	"fraudsim/internal/model"
)

func TestRecordAndSnapshot(t *testing.T) {
	s := NewStore()
	s.Record(model.StatusSuccess, 0)
	s.Record(model.StatusFailed, 1)
	s.Record(model.StatusPending, 1)
	s.Record(model.StatusFailed, 0)

	got := s.Snapshot()
	if got.Total != 4 || got.Success != 1 || got.Failed != 2 || got.Pending != 1 || got.Fraud != 2 {
		t.Fatalf("unexpected counts %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at stamped")
	}
}

func TestClearResetsCounts(t *testing.T) {
	s := NewStore()
	s.Record(model.StatusSuccess, 0)
	s.Clear()
	if got := s.Snapshot(); got.Total != 0 {
		t.Fatalf("expected zeroed counts, got %+v", got)
	}
}
