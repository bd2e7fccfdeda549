package models

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLookupError(t *testing.T) {
	err := NewLookupError(ErrCodeTimeout, "page body never appeared", context.DeadlineExceeded)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Unwrap does not expose the cause")
	}
	if !strings.HasPrefix(err.Error(), "LOOKUP_TIMEOUT: page body never appeared: ") {
		t.Errorf("Error() = %q", err.Error())
	}
	if d := err.ToDetail(); d.Code != ErrCodeTimeout || d.Message != "page body never appeared" {
		t.Errorf("ToDetail() = %+v", d)
	}
	if got := NewLookupError(ErrCodeInvalidInput, "domain is required", nil).Error(); got != "INVALID_INPUT: domain is required" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestBatchJob(t *testing.T) {
	job := NewBatchJob("batch-1", 2, 1700000000)

	snap := job.Snapshot()
	if snap.Status != "processing" || snap.Completed != 0 || len(snap.Results) != 2 {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	job.SetResult(1, &LookupResponse{Domain: "b.pl", Success: true})
	snap = job.Snapshot()
	if snap.Completed != 1 || snap.Results[0] != nil || snap.Results[1].Domain != "b.pl" {
		t.Errorf("snapshot = %+v", snap)
	}

	// Later writes do not change an earlier snapshot.
	job.SetResult(0, &LookupResponse{Domain: "a.pl"})
	if snap.Results[0] != nil {
		t.Error("snapshot shares the results slice")
	}

	job.Finish("partial")
	if got := job.Snapshot(); got.Status != "partial" || got.Completed != 2 {
		t.Errorf("final snapshot = %+v", got)
	}
}
