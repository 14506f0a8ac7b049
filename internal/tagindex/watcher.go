package tagindex

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sowilo/internal/scan"
	"github.com/starford/sowilo/internal/storage"
)

// Watch starts an fsnotify watcher on the vault root and feeds file change
// events into the index as incremental operations until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass that removes
// stale index entries and picks up files under their new paths.
func Watch(ctx context.Context, idx *Index, store storage.Provider, vaultRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(idx, store, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any .md files already in the new directory.
					indexNewDir(idx, store, vaultRoot, absPath, logger)
					continue
				}
			}

			// Only process .md files from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := idx.UpdateFile(rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel))

			case ev.Op&fsnotify.Remove != 0:
				if delErr := idx.RemoveFile(rel); delErr != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new path
				// arrives as a separate Create event (if it stays within a
				// watched dir). Drop the old entry immediately and schedule
				// a reconciliation pass to catch any stragglers.
				if delErr := idx.RemoveFile(rel); delErr != nil {
					logger.Warn("watcher: rename remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old removed", slog.String("path", rel))
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename removes index entries whose files no longer exist on
// disk and reindexes on-disk files the index does not track.
func reconcileAfterRename(idx *Index, store storage.Provider, logger *slog.Logger) {
	paths, err := scan.Scan(store, "", scan.Options{
		MaxDepth:  -1,
		FilesOnly: true,
		Filter: func(e storage.DirEntry, _ string) bool {
			return strings.HasSuffix(e.Name, ".md")
		},
	})
	if err != nil {
		logger.Warn("reconcile: scan failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		disk[p] = struct{}{}
	}

	for p := range idx.NoteKeys() {
		if _, ok := disk[p]; !ok {
			if delErr := idx.RemoveFile(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
			}
		}
	}

	indexed := idx.NoteKeys()
	for _, p := range paths {
		if _, ok := indexed[p]; ok {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := idx.UpdateFile(p, data); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("path", p))
		}
	}
}

// indexNewDir indexes any .md files found in a newly created directory.
func indexNewDir(idx *Index, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if idxErr := idx.UpdateFile(rel, data); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
