// Package journal reads and writes the structured journal store: one YAML
// document per day, laid out as root/YYYY/MM/YYYY-MM-DD.yaml, each holding
// an ordered list of entries.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/storage"
)

var (
	yearRe  = regexp.MustCompile(`^\d{4}$`)
	monthRe = regexp.MustCompile(`^\d{2}$`)
)

// Entry is a single journal entry within a day document.
type Entry struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"text,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
	Created string   `yaml:"created,omitempty"`
}

// Document is the decoded shape of one day file.
type Document struct {
	Entries []Entry `yaml:"entries"`
}

// Key builds the composite source key for a journal entry. The "journal:"
// prefix and "#" separator guarantee it can never collide with a relative
// note path.
func Key(date, entryID string) string {
	return "journal:" + date + "#" + entryID
}

// Store provides access to the journal tree under a root directory.
type Store struct {
	store  storage.Provider
	root   string
	ext    string
	logger *slog.Logger
}

// NewStore creates a journal store rooted at root (relative to the provider
// root). ext is the day-file extension including the dot, e.g. ".yaml".
func NewStore(store storage.Provider, root, ext string, logger *slog.Logger) *Store {
	if ext == "" {
		ext = ".yaml"
	}
	return &Store{store: store, root: root, ext: ext, logger: logger}
}

// DayPath returns the path of the day file for an ISO date (YYYY-MM-DD).
func (s *Store) DayPath(date string) (string, error) {
	parts := strings.SplitN(date, "-", 3)
	if len(parts) != 3 || !yearRe.MatchString(parts[0]) || !monthRe.MatchString(parts[1]) {
		return "", fmt.Errorf("journal: invalid date %q", date)
	}
	return path.Join(s.root, parts[0], parts[1], date+s.ext), nil
}

// ReadDay decodes the day document for date. A missing day file yields an
// empty document rather than an error.
func (s *Store) ReadDay(date string) (*Document, error) {
	p, err := s.DayPath(date)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Document{}, nil
		}
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("journal: decode %s: %w", p, err)
	}
	return &doc, nil
}

// WriteDay encodes and stores the day document for date.
func (s *Store) WriteDay(date string, doc *Document) error {
	p, err := s.DayPath(date)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("journal: encode %s: %w", p, err)
	}
	return s.store.Write(p, data)
}

// EachTaggedEntry walks the journal tree and invokes fn for every entry that
// carries at least one tag. Folders that do not match the year/month pattern
// are skipped silently; day files that fail to decode are logged and skipped,
// never aborting the walk.
func (s *Store) EachTaggedEntry(fn func(date string, e Entry)) {
	years, err := s.store.ListDirectory(s.root)
	if err != nil {
		// No journal tree is a normal state for a fresh vault.
		return
	}
	for _, y := range years {
		if !y.IsDir || !yearRe.MatchString(y.Name) {
			continue
		}
		yearDir := path.Join(s.root, y.Name)
		months, err := s.store.ListDirectory(yearDir)
		if err != nil {
			s.logger.Warn("journal: list month dir failed",
				slog.String("path", yearDir), slog.String("error", err.Error()))
			continue
		}
		for _, m := range months {
			if !m.IsDir || !monthRe.MatchString(m.Name) {
				continue
			}
			monthDir := path.Join(yearDir, m.Name)
			days, err := s.store.ListDirectory(monthDir)
			if err != nil {
				s.logger.Warn("journal: list day dir failed",
					slog.String("path", monthDir), slog.String("error", err.Error()))
				continue
			}
			for _, d := range days {
				if d.IsDir || !strings.HasSuffix(d.Name, s.ext) {
					continue
				}
				s.walkDay(path.Join(monthDir, d.Name), strings.TrimSuffix(d.Name, s.ext), fn)
			}
		}
	}
}

func (s *Store) walkDay(dayPath, date string, fn func(date string, e Entry)) {
	data, err := s.store.Read(dayPath)
	if err != nil {
		s.logger.Warn("journal: read day failed",
			slog.String("path", dayPath), slog.String("error", err.Error()))
		return
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("journal: malformed day document",
			slog.String("path", dayPath), slog.String("error", err.Error()))
		return
	}
	for _, e := range doc.Entries {
		if e.ID == "" || len(e.Tags) == 0 {
			continue
		}
		fn(date, e)
	}
}
