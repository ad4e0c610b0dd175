package engine

import (
	"testing"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
)

func statuses(ss ...string) []models.CheckResult {
	out := make([]models.CheckResult, len(ss))
	for i, s := range ss {
		out[i] = models.CheckResult{Status: models.Status(s), ResourceID: "N/A"}
	}
	return out
}

func TestSummarize_Counts(t *testing.T) {
	got := Summarize(statuses("PASS", "PASS", "FAIL", "WARN", "ERROR", "FAIL"))
	want := models.Summary{Total: 6, Pass: 2, Fail: 2, Warn: 1, Error: 1}
	if got != want {
		t.Errorf("Summarize = %+v; want %+v", got, want)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(nil); got != (models.Summary{}) {
		t.Errorf("Summarize(nil) = %+v; want zero", got)
	}
}

// TestSummarize_NormalizesBeforeCounting verifies that non-canonical
// spellings are folded before counting.
func TestSummarize_NormalizesBeforeCounting(t *testing.T) {
	got := Summarize(statuses("양호", "취약", "경고", "오류", "pass"))
	want := models.Summary{Total: 5, Pass: 2, Fail: 1, Warn: 1, Error: 1}
	if got != want {
		t.Errorf("Summarize = %+v; want %+v", got, want)
	}
}

// TestSummarize_UnknownCountsOnlyTowardsTotal verifies the bucket sum is
// below the total when a status is outside the vocabulary.
func TestSummarize_UnknownCountsOnlyTowardsTotal(t *testing.T) {
	got := Summarize(statuses("PASS", "SKIPPED", "N/A"))
	if got.Total != 3 {
		t.Errorf("Total = %d; want 3", got.Total)
	}
	if sum := got.Pass + got.Fail + got.Warn + got.Error; sum != 1 {
		t.Errorf("bucket sum = %d; want 1", sum)
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	rs := statuses("PASS", "failed", "WARN", "bogus")
	first := Summarize(rs)
	second := Summarize(rs)
	if first != second {
		t.Errorf("Summarize not idempotent: %+v vs %+v", first, second)
	}
	if rs[1].Status != "failed" {
		t.Error("Summarize must not modify its input")
	}
}
