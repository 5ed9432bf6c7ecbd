package report

import (
	"sync"
	"testing"

	"github.com/matzehuels/featuregrid/pkg/matrix"
)

func planEntries(sets ...[]string) []matrix.Entry {
	entries := make([]matrix.Entry, 0, len(sets))
	for _, set := range sets {
		entries = append(entries, matrix.Entry{Package: "testdummy", Features: matrix.NewFeatureSet(set...)})
	}
	return entries
}

func TestRecordSuccessDetermination(t *testing.T) {
	warningLines := []string{"warning: unused variable `x`", "  --> src/lib.rs:1:1"}

	tests := []struct {
		name        string
		opts        Options
		exitCode    int
		lines       []string
		wantSuccess bool
		wantWarn    int
		wantErr     int
	}{
		{
			name:        "CleanPass",
			exitCode:    0,
			lines:       []string{"   Compiling testdummy v0.1.0", "    Finished dev profile"},
			wantSuccess: true,
		},
		{
			name:        "WarningDefaultMode",
			exitCode:    0,
			lines:       warningLines,
			wantSuccess: true,
			wantWarn:    1,
		},
		{
			name:        "WarningPedanticMode",
			opts:        Options{Pedantic: true},
			exitCode:    0,
			lines:       warningLines,
			wantSuccess: false,
			wantWarn:    1,
		},
		{
			name:        "WarningErrorsOnlyMode",
			opts:        Options{ErrorsOnly: true},
			exitCode:    0,
			lines:       warningLines,
			wantSuccess: true,
			wantWarn:    0,
		},
		{
			name:        "NonZeroExit",
			exitCode:    101,
			lines:       []string{"error[E0425]: cannot find value `foo`", "error: aborting due to previous error"},
			wantSuccess: false,
			wantErr:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := planEntries([]string{"a"})
			agg := NewAggregator(entries, tt.opts)
			agg.Record(entries[0], tt.exitCode, tt.lines)

			rep := agg.Finalize()
			res := rep.Results[0]
			if !res.Recorded {
				t.Fatal("result not recorded")
			}
			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if res.Warnings != tt.wantWarn {
				t.Errorf("Warnings = %d, want %d", res.Warnings, tt.wantWarn)
			}
			if res.Errors != tt.wantErr {
				t.Errorf("Errors = %d, want %d", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestRecordSampleCodes(t *testing.T) {
	entries := planEntries([]string{"a"})
	agg := NewAggregator(entries, Options{})
	agg.Record(entries[0], 101, []string{
		"error[E0425]: cannot find value",
		"error[E0308]: mismatched types",
		"error[E0425]: cannot find value again",
	})

	rep := agg.Finalize()
	codes := rep.Results[0].Codes
	if len(codes) != 2 || codes[0] != "E0425" || codes[1] != "E0308" {
		t.Errorf("Codes = %v, want [E0425 E0308]", codes)
	}
}

func TestFailFastFlag(t *testing.T) {
	entries := planEntries([]string{"a"}, []string{"b"})

	agg := NewAggregator(entries, Options{FailFast: true})
	if agg.Stopped() {
		t.Fatal("Stopped before any failure")
	}

	agg.Record(entries[0], 0, nil)
	if agg.Stopped() {
		t.Fatal("Stopped after a success")
	}

	agg.Record(entries[1], 101, nil)
	if !agg.Stopped() {
		t.Fatal("not Stopped after a failure")
	}

	rep := agg.Finalize()
	if rep.FirstBadExit != 101 {
		t.Errorf("FirstBadExit = %d, want 101", rep.FirstBadExit)
	}
}

func TestFailFastDisabled(t *testing.T) {
	entries := planEntries([]string{"a"})
	agg := NewAggregator(entries, Options{})
	agg.Record(entries[0], 1, nil)
	if agg.Stopped() {
		t.Error("Stopped set without FailFast")
	}
}

func TestPedanticFailureExitCode(t *testing.T) {
	// Exit code zero but pedantic failure still fails the process.
	entries := planEntries([]string{"a"})
	agg := NewAggregator(entries, Options{Pedantic: true})
	agg.Record(entries[0], 0, []string{"warning: unused"})

	rep := agg.Finalize()
	if rep.FirstBadExit != 1 {
		t.Errorf("FirstBadExit = %d, want 1", rep.FirstBadExit)
	}
}

func TestFinalizeOrderAndTotals(t *testing.T) {
	entries := planEntries(nil, []string{"a"}, []string{"b"})
	agg := NewAggregator(entries, Options{})

	// Completions arrive out of order; the report keeps matrix order.
	agg.Record(entries[2], 1, nil)
	agg.Record(entries[0], 0, nil)

	rep := agg.Finalize()
	if rep.Total != 3 || rep.Completed != 2 || rep.Succeeded != 1 || rep.Failed != 1 {
		t.Errorf("totals = %d/%d/%d/%d", rep.Total, rep.Completed, rep.Succeeded, rep.Failed)
	}
	if rep.Success() {
		t.Error("Success() = true with a failure and an unrecorded entry")
	}
	for i, res := range rep.Results {
		if !res.Entry.Features.Equal(entries[i].Features) {
			t.Errorf("Results[%d] = %v, want %v", i, res.Entry.Features, entries[i].Features)
		}
	}
	if rep.Results[1].Recorded {
		t.Error("unrecorded entry marked recorded")
	}
	if rep.RunID == "" {
		t.Error("RunID empty")
	}
}

func TestRecordConcurrent(t *testing.T) {
	var sets [][]string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		sets = append(sets, []string{name})
	}
	entries := planEntries(sets...)
	agg := NewAggregator(entries, Options{})

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e matrix.Entry) {
			defer wg.Done()
			agg.Record(e, 0, []string{"warning: w"})
		}(entry)
	}
	wg.Wait()

	rep := agg.Finalize()
	if rep.Completed != len(entries) || rep.Succeeded != len(entries) {
		t.Errorf("completed = %d, succeeded = %d, want %d", rep.Completed, rep.Succeeded, len(entries))
	}
}
