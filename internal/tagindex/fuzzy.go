package tagindex

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Match is one fuzzy search hit.
type Match struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
	Score int    `json:"score"`
}

// tagSource adapts the flat tag list to fuzzy.Source.
type tagSource []TagCount

func (s tagSource) String(i int) string { return s[i].Tag }
func (s tagSource) Len() int            { return len(s) }

// matcher wraps the fuzzy-search structure built over the flat tag list.
// It is rebuilt wholesale whenever the list changes; the vocabulary is small
// (distinct tags, not files), so a rebuild is just a slice copy.
type matcher struct {
	source    tagSource
	threshold int
}

func newMatcher(allTags []TagCount, threshold int) *matcher {
	src := make(tagSource, len(allTags))
	copy(src, allTags)
	return &matcher{source: src, threshold: threshold}
}

// search returns tags approximately matching query, closest first. Matches
// scoring below the threshold are dropped. An empty query yields nothing.
func (m *matcher) search(query string) []Match {
	if m == nil || query == "" {
		return nil
	}
	results := fuzzy.FindFrom(query, m.source)
	out := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Score < m.threshold {
			continue
		}
		tc := m.source[r.Index]
		out = append(out, Match{Tag: tc.Tag, Count: tc.Count, Score: r.Score})
	}
	// fuzzy returns score-descending order; break ties by tag so results are
	// deterministic for a fixed vocabulary and query.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Search runs a fuzzy tag query against the current matcher. It returns an
// empty result for an empty query or before the index has been built.
func (x *Index) Search(query string) []Match {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.matcher.search(query)
}
