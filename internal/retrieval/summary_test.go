package retrieval

import (
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/mnemo/internal/memory"
)

func TestSummarizeEmptyReturnsSentinel(t *testing.T) {
	if got := Summarize(nil, 500); got != EmptySummary {
		t.Fatalf("got %q, want sentinel %q", got, EmptySummary)
	}
	if got := Summarize([]*memory.Record{}, 500); got != EmptySummary {
		t.Fatalf("got %q, want sentinel %q", got, EmptySummary)
	}
}

func TestSummarizeRespectsMaxLength(t *testing.T) {
	recs := []*memory.Record{
		{ID: "1", Text: "met the new supplier and toured the warehouse", Importance: 8, Timestamp: base},
		{ID: "2", Text: "signed a three year lease", Importance: 7, Timestamp: base},
		{ID: "3", Text: "argued over delivery schedules", Importance: 6, Timestamp: base},
	}
	for _, max := range []int{20, 60, 120, 500} {
		got := Summarize(recs, max)
		if len(got) > max {
			t.Errorf("maxLength %d: output length %d", max, len(got))
		}
	}
}

func TestSummarizeSalienceOrderAndFormat(t *testing.T) {
	older := &memory.Record{ID: "older", Text: "older important event", Importance: 9, Timestamp: base.Add(-time.Hour)}
	newer := &memory.Record{ID: "newer", Text: "newer important event", Importance: 9, Timestamp: base}
	minor := &memory.Record{ID: "minor", Text: "minor event", Importance: 2, Timestamp: base}

	got := Summarize([]*memory.Record{minor, older, newer}, 500)
	lines := strings.Split(got, "\n")
	want := []string{
		"- newer important event",
		"- older important event",
		"- minor event",
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), got)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
}

func TestSummarizeKeepsRecordsWithoutIDs(t *testing.T) {
	// Caller-built records (e.g. posted JSON) often omit IDs; each one
	// still gets its own line.
	recs := []*memory.Record{
		{Text: "first distinct event", Importance: 5, Timestamp: base},
		{Text: "second distinct event", Importance: 5, Timestamp: base},
	}
	got := Summarize(recs, 500)
	if !strings.Contains(got, "- first distinct event") || !strings.Contains(got, "- second distinct event") {
		t.Fatalf("expected both events in digest, got %q", got)
	}
}

func TestSummarizeNeverCutsAppendedLines(t *testing.T) {
	recs := []*memory.Record{
		{ID: "1", Text: "first event", Importance: 9, Timestamp: base}, // "- first event" = 13 chars
		{ID: "2", Text: "second event", Importance: 8, Timestamp: base},
	}
	// Room for the first line but not the second: the second is dropped
	// whole, not truncated.
	got := Summarize(recs, 20)
	if got != "- first event" {
		t.Fatalf("got %q, want %q", got, "- first event")
	}
}

func TestSummarizeTruncatesOversizedFirstLine(t *testing.T) {
	long := &memory.Record{ID: "1", Text: strings.Repeat("x", 100), Importance: 5, Timestamp: base}

	got := Summarize([]*memory.Record{long}, 30)
	if got == "" {
		t.Fatal("non-empty input must never produce an empty digest")
	}
	if len(got) != 30 {
		t.Fatalf("got length %d, want 30", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestSummarizeDefaultLimit(t *testing.T) {
	long := &memory.Record{ID: "1", Text: strings.Repeat("y", 2000), Importance: 5, Timestamp: base}
	got := Summarize([]*memory.Record{long}, 0)
	if len(got) != DefaultSummaryMaxLength {
		t.Fatalf("got length %d, want default %d", len(got), DefaultSummaryMaxLength)
	}
}
