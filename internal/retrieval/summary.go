package retrieval

import (
	"sort"
	"strings"

	"github.com/nidhogg/mnemo/internal/memory"
)

// EmptySummary is returned for an empty memory list. Callers distinguish
// "no memories" from a failure by checking for this sentinel, never for
// an empty string.
const EmptySummary = "No relevant memories found."

// DefaultSummaryMaxLength caps the digest when the caller passes no limit.
const DefaultSummaryMaxLength = 500

// Summarize renders memories into a bounded text digest for prompt
// injection. Memories are ordered by salience, then one "- {text}" line
// is appended per memory while the digest (separators included) fits
// maxLength. Appended lines are never cut; only when the very first line
// alone overflows is it truncated with an ellipsis, so a non-empty input
// never yields an empty digest.
func Summarize(memories []*memory.Record, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSummaryMaxLength
	}
	if len(memories) == 0 {
		return EmptySummary
	}

	// Plain sort, no rank pipeline: summarization input may carry
	// caller-built records without IDs, so ID dedup would drop them.
	ordered := make([]*memory.Record, len(memories))
	copy(ordered, memories)
	sort.SliceStable(ordered, func(i, j int) bool {
		return bySalience(ordered[i], ordered[j])
	})

	var parts []string
	total := 0
	for _, rec := range ordered {
		line := "- " + rec.Text
		cost := len(line)
		if len(parts) > 0 {
			cost++ // joining newline
		}
		if total+cost > maxLength {
			if len(parts) == 0 {
				parts = append(parts, truncateLine(line, maxLength))
			}
			break
		}
		parts = append(parts, line)
		total += cost
	}
	return strings.Join(parts, "\n")
}

// truncateLine cuts a line to fit max bytes, marking the cut with "...".
func truncateLine(line string, max int) string {
	if len(line) <= max {
		return line
	}
	if max <= 3 {
		return line[:max]
	}
	return line[:max-3] + "..."
}
