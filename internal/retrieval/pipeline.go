package retrieval

import (
	"sort"

	"github.com/nidhogg/mnemo/internal/memory"
)

// lessFunc orders two records, best first.
type lessFunc func(a, b *memory.Record) bool

// bySalience ranks importance first, then timestamp, both descending.
// Planning and summarization want the most salient memories up front,
// with freshness breaking ties.
func bySalience(a, b *memory.Record) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	return a.Timestamp.After(b.Timestamp)
}

// byFreshness ranks timestamp first, then importance, both descending.
// Social recall inverts planning's priority: the latest interaction
// beats the most important one.
func byFreshness(a, b *memory.Record) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Importance > b.Importance
}

// rank is the shared merge pipeline behind every specializer: union the
// input lists preserving first-seen order, drop duplicate IDs, sort by
// less, and cap at limit. Limit <= 0 means no cap.
func rank(less lessFunc, limit int, lists ...[]*memory.Record) []*memory.Record {
	var merged []*memory.Record
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, rec := range list {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			merged = append(merged, rec)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return less(merged[i], merged[j])
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// tail returns the last n records of a most-recent-last slice.
func tail(recs []*memory.Record, n int) []*memory.Record {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}
