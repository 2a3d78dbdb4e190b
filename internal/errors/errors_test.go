package errors

import (
	"fmt"
	"testing"
)

func TestFastPathNoReporter(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderPreservesFields(t *testing.T) {
	t.Parallel()

	ee := Newf("ingest failed on %s", "bells_0042.wav").
		Component("indexer").
		Category(CategoryIntegrity).
		Priority(PriorityCritical).
		Context("path", "bells_0042.wav").
		Build()

	if ee.GetComponent() != "indexer" {
		t.Errorf("component = %q, want indexer", ee.GetComponent())
	}
	if ee.Category != CategoryIntegrity {
		t.Errorf("category = %q, want integrity", ee.Category)
	}
	if ee.GetPriority() != PriorityCritical {
		t.Errorf("priority = %q, want critical", ee.GetPriority())
	}
	if got := ee.GetContext()["path"]; got != "bells_0042.wav" {
		t.Errorf("context path = %v, want bells_0042.wav", got)
	}
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("x")).Priority("urgent!!").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("priority = %q, want medium fallback", ee.GetPriority())
	}
}

func TestUnwrapReachesOriginal(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("underlying failure")
	wrapped := fmt.Errorf("while ingesting: %w", sentinel)
	ee := New(wrapped).Category(CategoryDatabase).Build()

	if !Is(ee, sentinel) {
		t.Error("errors.Is should reach the sentinel through the enhanced wrapper")
	}

	var target *EnhancedError
	if !As(error(ee), &target) {
		t.Error("errors.As should find the EnhancedError")
	}
}

func TestChecksumContextCarriesAllThreeKeys(t *testing.T) {
	t.Parallel()

	ee := Newf("checksum mismatch for %s", "specs/b12/seg_001.npy").
		Category(CategoryIntegrity).
		ChecksumContext("specs/b12/seg_001.npy", "aaaa", "bbbb").
		Build()

	ctx := ee.GetContext()
	if ctx["path"] != "specs/b12/seg_001.npy" {
		t.Errorf("path context = %v", ctx["path"])
	}
	if ctx["expected_checksum"] != "aaaa" || ctx["actual_checksum"] != "bbbb" {
		t.Errorf("checksum context incomplete: %v", ctx)
	}
	if !IsCategory(ee, CategoryIntegrity) {
		t.Error("checksum mismatch should carry CategoryIntegrity")
	}
	if IsRetryable(ee) {
		t.Error("integrity violations must never be retryable")
	}
}

func TestIsRetryableOnlyForTransient(t *testing.T) {
	t.Parallel()

	transient := New(NewStd("database is locked")).Category(CategoryTransient).Build()
	if !IsRetryable(transient) {
		t.Error("transient errors should be retryable")
	}

	for _, cat := range []ErrorCategory{
		CategoryConfiguration, CategoryIntegrity, CategoryConnection,
		CategoryDatabase, CategoryValidation, CategoryTimeout,
	} {
		ee := New(NewStd("boom")).Category(cat).Build()
		if IsRetryable(ee) {
			t.Errorf("category %s must not be retryable", cat)
		}
	}
}

func TestDetectCategoryHeuristics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"checksum mismatch for file x", CategoryIntegrity},
		{"FOREIGN KEY constraint failed", CategoryIntegrity},
		{"database is locked", CategoryTransient},
		{"dial tcp 10.0.0.1:3306: connect: connection refused", CategoryConnection},
		{"context deadline exceeded", CategoryTimeout},
		{"record not found", CategoryNotFound},
		{"invalid segment bounds", CategoryValidation},
		{"open /tmp/x.wav: permission denied", CategoryFileIO},
		{"something else entirely", CategoryGeneric},
	}

	for _, tc := range cases {
		if got := detectCategory(NewStd(tc.msg)); got != tc.want {
			t.Errorf("detectCategory(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

type recordingReporter struct {
	seen []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.seen = append(r.seen, ee) }
func (r *recordingReporter) IsEnabled() bool               { return true }

func TestReporterHookReceivesBuiltErrors(t *testing.T) {
	rep := &recordingReporter{}
	SetReporter(rep)
	defer SetReporter(nil)

	ee := New(fmt.Errorf("hook me")).Category(CategoryDatabase).Build()

	if len(rep.seen) != 1 {
		t.Fatalf("reporter saw %d errors, want 1", len(rep.seen))
	}
	if !ee.IsReported() {
		t.Error("error should be marked reported after hook delivery")
	}
}
