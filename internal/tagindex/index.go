// Package tagindex maintains the bidirectional tag index over notes and
// journal entries: a forward map from source key to tags, a reverse map from
// tag to source keys, and a derived flat tag list with usage counts that
// feeds the fuzzy matcher.
//
// Source keys are either a vault-relative note path or a composite journal
// key ("journal:<date>#<id>"). Every mutation rebuilds the derived state,
// persists the index to the cache slot, and emits one reindex event.
package tagindex

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/sowilo/internal/frontmatter"
	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/scan"
	"github.com/starford/sowilo/internal/storage"
)

// ErrBuildInProgress is returned when a full build is requested while a
// previous build is still running.
var ErrBuildInProgress = errors.New("tagindex: build already in progress")

// TagCount is one entry of the derived flat tag list.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Options configures an Index.
type Options struct {
	// CacheKey is the key-value slot the serialized index lives under.
	// Empty means DefaultCacheKey.
	CacheKey string
	// FuzzyThreshold is the minimum fuzzy match score kept by Search.
	FuzzyThreshold int
	// Notify, when set, receives one event per index mutation.
	Notify func(Event)
}

// Index is the tag index for one open vault. All operations are safe for
// concurrent use; mutations are serialized by an internal mutex and at most
// one full build runs at a time.
type Index struct {
	store   storage.Provider
	journal *journal.Store
	cache   Store
	logger  *slog.Logger

	cacheKey  string
	threshold int
	notify    func(Event)

	building atomic.Bool

	mu      sync.Mutex
	files   map[string][]string // source key → ordered tag list
	tags    map[string][]string // tag → source keys, append order
	allTags []TagCount          // derived from tags, sorted by tag
	matcher *matcher
}

// New creates an empty index. Populate it with Build or LoadCached.
func New(store storage.Provider, js *journal.Store, cache Store, logger *slog.Logger, opts Options) *Index {
	if opts.CacheKey == "" {
		opts.CacheKey = DefaultCacheKey
	}
	return &Index{
		store:     store,
		journal:   js,
		cache:     cache,
		logger:    logger,
		cacheKey:  opts.CacheKey,
		threshold: opts.FuzzyThreshold,
		notify:    opts.Notify,
		files:     make(map[string][]string),
		tags:      make(map[string][]string),
	}
}

// Build repopulates the index from the note tree and the journal tree. Scan
// failures on individual files or subtrees are logged and skipped. Only one
// build may run at a time. The rebuild is staged into fresh maps and swapped
// in wholesale, so a cancelled or failed build leaves the live index and its
// derived state untouched.
func (x *Index) Build(ctx context.Context) error {
	if !x.building.CompareAndSwap(false, true) {
		return ErrBuildInProgress
	}
	defer x.building.Store(false)

	paths, err := scan.Scan(x.store, "", scan.Options{
		MaxDepth:  -1,
		FilesOnly: true,
		Filter: func(e storage.DirEntry, _ string) bool {
			return strings.HasSuffix(e.Name, ".md")
		},
		OnError: func(p string, err error) {
			x.logger.Warn("tagindex: list failed",
				slog.String("path", p), slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return err
	}

	files := make(map[string][]string)
	tags := make(map[string][]string)
	add := func(key string, ts []string) {
		ts = dedupe(ts)
		if len(ts) == 0 {
			return
		}
		files[key] = ts
		for _, t := range ts {
			tags[t] = append(tags[t], key)
		}
	}

	for _, p := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := x.store.Read(p)
		if err != nil {
			x.logger.Warn("tagindex: read failed",
				slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		add(p, frontmatter.ExtractTags(data))
	}

	x.journal.EachTaggedEntry(func(date string, e journal.Entry) {
		add(journal.Key(date, e.ID), e.Tags)
	})

	x.mu.Lock()
	defer x.mu.Unlock()

	x.files = files
	x.tags = tags

	ev := Event{
		Type:       EventFull,
		FilesAdded: sortedKeys(x.files),
		TagsAdded:  sortedKeys(x.tags),
	}
	return x.finalizeLocked(ev)
}

// UpdateFile reindexes a single note from its new content. Tags the note no
// longer carries lose this member; tags whose member list empties are
// deleted. An empty extraction removes the note from the index entirely.
func (x *Index) UpdateFile(key string, content []byte) error {
	return x.updateRecord(key, frontmatter.ExtractTags(content))
}

// UpdateJournalEntry reindexes a single journal entry under its composite key.
func (x *Index) UpdateJournalEntry(date, entryID string, tags []string) error {
	return x.updateRecord(journal.Key(date, entryID), tags)
}

func (x *Index) updateRecord(key string, newTags []string) error {
	newTags = dedupe(newTags)

	x.mu.Lock()
	defer x.mu.Unlock()

	_, hadFile := x.files[key]
	if len(newTags) == 0 && !hadFile {
		// Nothing indexed, nothing to index. Mirrors the silent no-op of
		// removing an absent key.
		return nil
	}

	existedBefore := make(map[string]bool, len(newTags))
	for _, t := range newTags {
		_, existedBefore[t] = x.tags[t]
	}

	emptied := x.dropReverseLocked(key)

	var addedTags []string
	if len(newTags) > 0 {
		x.files[key] = newTags
		for _, t := range newTags {
			// A tag is "added" only when it did not exist anywhere in the
			// index before this operation, not merely new to this file.
			if !existedBefore[t] {
				addedTags = append(addedTags, t)
			}
			x.tags[t] = append(x.tags[t], key)
		}
	} else {
		delete(x.files, key)
	}

	// A tag emptied by the removal phase but re-added by the new tag set is
	// reported as neither removed nor added.
	var removedTags []string
	for _, t := range emptied {
		if _, live := x.tags[t]; !live {
			removedTags = append(removedTags, t)
		}
	}

	ev := Event{Type: EventUpdate, TagsAdded: addedTags, TagsRemoved: removedTags}
	if len(newTags) > 0 {
		ev.FilesAdded = []string{key}
	} else if hadFile {
		ev.FilesRemoved = []string{key}
	}
	return x.finalizeLocked(ev)
}

// RemoveFile deletes a source key from the index, cascading the deletion of
// any tag whose member list empties. Removing an absent key is a no-op.
func (x *Index) RemoveFile(key string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.files[key]; !ok {
		return nil
	}
	removedTags := x.dropReverseLocked(key)
	delete(x.files, key)

	return x.finalizeLocked(Event{
		Type:         EventRemove,
		FilesRemoved: []string{key},
		TagsRemoved:  removedTags,
	})
}

// RemoveJournalEntry deletes a journal entry's composite key from the index.
func (x *Index) RemoveJournalEntry(date, entryID string) error {
	return x.RemoveFile(journal.Key(date, entryID))
}

// RenameFile moves the tag list from oldKey to newKey. Reverse-map
// occurrences are replaced in place, so renaming onto a fresh key never
// changes any tag's member count. Renaming an absent key is a no-op; renaming
// onto an already indexed key replaces that key's record.
func (x *Index) RenameFile(oldKey, newKey string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tags, ok := x.files[oldKey]
	if !ok {
		return nil
	}

	var emptied []string
	if _, taken := x.files[newKey]; taken {
		emptied = x.dropReverseLocked(newKey)
		delete(x.files, newKey)
	}

	delete(x.files, oldKey)
	x.files[newKey] = tags

	for _, t := range tags {
		members := x.tags[t]
		for i, k := range members {
			if k == oldKey {
				members[i] = newKey
			}
		}
	}

	var removedTags []string
	for _, t := range emptied {
		if _, live := x.tags[t]; !live {
			removedTags = append(removedTags, t)
		}
	}

	return x.finalizeLocked(Event{
		Type:         EventRename,
		FilesAdded:   []string{newKey},
		FilesRemoved: []string{oldKey},
		TagsRemoved:  removedTags,
	})
}

// AllTags returns a copy of the derived flat tag list, sorted by tag.
func (x *Index) AllTags() []TagCount {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]TagCount, len(x.allTags))
	copy(out, x.allTags)
	return out
}

// TagsFor returns the tags recorded for a source key, or nil.
func (x *Index) TagsFor(key string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	tags, ok := x.files[key]
	if !ok {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// FilesFor returns the source keys carrying tag, or nil.
func (x *Index) FilesFor(tag string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	keys, ok := x.tags[tag]
	if !ok {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// NoteKeys returns every indexed source key that is a note path (journal
// composite keys are excluded). Used by the watcher reconciliation pass.
func (x *Index) NoteKeys() map[string]struct{} {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make(map[string]struct{}, len(x.files))
	for k := range x.files {
		if !strings.HasPrefix(k, "journal:") {
			out[k] = struct{}{}
		}
	}
	return out
}

// FileCount returns the number of indexed source keys.
func (x *Index) FileCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.files)
}

// TagCountTotal returns the number of distinct live tags.
func (x *Index) TagCountTotal() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.tags)
}

// dropReverseLocked removes key from every reverse list it appears in,
// deleting tags whose list empties, and returns the emptied tag names.
func (x *Index) dropReverseLocked(key string) []string {
	oldTags := x.files[key]
	var emptied []string
	for _, t := range oldTags {
		members := x.tags[t]
		kept := members[:0]
		for _, k := range members {
			if k != key {
				kept = append(kept, k)
			}
		}
		if len(kept) == 0 {
			delete(x.tags, t)
			emptied = append(emptied, t)
		} else {
			x.tags[t] = kept
		}
	}
	return emptied
}

// finalizeLocked rebuilds the derived state, persists the index, and emits
// the event. A persistence failure is logged and returned, but the in-memory
// mutation is never rolled back.
func (x *Index) finalizeLocked(ev Event) error {
	x.allTags = x.allTags[:0]
	for t, keys := range x.tags {
		x.allTags = append(x.allTags, TagCount{Tag: t, Count: len(keys)})
	}
	sort.Slice(x.allTags, func(i, j int) bool {
		return x.allTags[i].Tag < x.allTags[j].Tag
	})
	x.matcher = newMatcher(x.allTags, x.threshold)

	saveErr := x.saveLocked()
	if saveErr != nil {
		x.logger.Warn("tagindex: persist failed", slog.String("error", saveErr.Error()))
	}

	ev.Meta = Meta{Files: len(x.files), Tags: len(x.tags)}
	if x.notify != nil {
		x.notify(ev)
	}
	return saveErr
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
