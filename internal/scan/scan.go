// Package scan implements generic directory traversal over a storage.Provider.
package scan

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/sowilo/internal/storage"
)

// Options controls a Scan.
type Options struct {
	// MaxDepth bounds recursion: entries directly under the base are at
	// depth 0, and a directory at depth d is entered only when d < MaxDepth.
	// Negative means unlimited.
	MaxDepth int
	// IncludeHidden includes entries whose name starts with "." in results
	// and recursion. By default hidden entries are skipped entirely.
	IncludeHidden bool
	// Filter, when set, must return true for an entry to appear in results.
	// It does not prevent recursion into directories.
	Filter func(entry storage.DirEntry, relPath string) bool
	// DirectoriesOnly restricts results to directories.
	DirectoriesOnly bool
	// FilesOnly restricts results to files.
	FilesOnly bool
	// OnError is invoked when listing a directory fails. Traversal continues
	// with the remaining work; a single unreadable subtree never aborts the
	// whole scan.
	OnError func(relPath string, err error)
}

type work struct {
	rel   string
	depth int
}

// Scan walks base (relative to the provider root) and returns slash-separated
// paths relative to base, sorted lexicographically. The traversal uses an
// explicit worklist rather than recursion, so arbitrarily deep trees cannot
// exhaust the call stack.
func Scan(p storage.Provider, base string, opts Options) ([]string, error) {
	if opts.DirectoriesOnly && opts.FilesOnly {
		return nil, fmt.Errorf("scan: DirectoriesOnly and FilesOnly are mutually exclusive")
	}

	var out []string
	stack := []work{{rel: "", depth: 0}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := base
		if w.rel != "" {
			dir = path.Join(base, w.rel)
		}
		entries, err := p.ListDirectory(dir)
		if err != nil {
			if opts.OnError != nil {
				// Base-relative, matching Filter.
				opts.OnError(w.rel, err)
			}
			continue
		}

		for _, e := range entries {
			if !opts.IncludeHidden && strings.HasPrefix(e.Name, ".") {
				continue
			}
			rel := e.Name
			if w.rel != "" {
				rel = path.Join(w.rel, e.Name)
			}

			if include(e, rel, opts) {
				out = append(out, rel)
			}

			if e.IsDir && (opts.MaxDepth < 0 || w.depth < opts.MaxDepth) {
				stack = append(stack, work{rel: rel, depth: w.depth + 1})
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

func include(e storage.DirEntry, rel string, opts Options) bool {
	if opts.DirectoriesOnly && !e.IsDir {
		return false
	}
	if opts.FilesOnly && e.IsDir {
		return false
	}
	if opts.Filter != nil && !opts.Filter(e, rel) {
		return false
	}
	return true
}
