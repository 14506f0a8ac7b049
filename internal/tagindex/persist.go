package tagindex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// DefaultCacheKey is the reserved key-value slot for the serialized index.
const DefaultCacheKey = "sowilo/tagindex"

// Store is the durable key-value interface the index persists through.
type Store interface {
	SetItem(key string, value []byte) error
	GetItem(key string) ([]byte, error)
}

// snapshot is the serialized form of the index: the two source maps only.
// Derived state (allTags, the matcher) is rebuilt on load.
type snapshot struct {
	Files map[string][]string `json:"files"`
	Tags  map[string][]string `json:"tags"`
}

// saveLocked serializes the index to the cache slot. Caller holds the mutex.
func (x *Index) saveLocked() error {
	data, err := json.Marshal(snapshot{Files: x.files, Tags: x.tags})
	if err != nil {
		return fmt.Errorf("tagindex: marshal: %w", err)
	}
	return x.cache.SetItem(x.cacheKey, data)
}

// LoadCached rehydrates the index from the cache slot and rebuilds the
// derived tag list and the fuzzy matcher. It reports false when the slot is
// missing or the cached data is corrupt; the caller should then run a full
// build. Load never fails hard: a bad cache is equivalent to no cache.
func (x *Index) LoadCached() bool {
	data, err := x.cache.GetItem(x.cacheKey)
	if err != nil {
		x.logger.Warn("tagindex: load cache failed", slog.String("error", err.Error()))
		return false
	}
	if data == nil {
		return false
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		x.logger.Warn("tagindex: corrupt cache", slog.String("error", err.Error()))
		return false
	}
	if snap.Files == nil {
		snap.Files = make(map[string][]string)
	}
	if snap.Tags == nil {
		snap.Tags = make(map[string][]string)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.files = snap.Files
	x.tags = snap.Tags
	x.allTags = x.allTags[:0]
	for t, keys := range x.tags {
		x.allTags = append(x.allTags, TagCount{Tag: t, Count: len(keys)})
	}
	sort.Slice(x.allTags, func(i, j int) bool {
		return x.allTags[i].Tag < x.allTags[j].Tag
	})
	x.matcher = newMatcher(x.allTags, x.threshold)
	return true
}
