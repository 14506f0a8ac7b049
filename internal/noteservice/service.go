// Package noteservice coordinates vault storage writes with incremental tag
// index updates so the index never drifts from the files on disk.
package noteservice

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/frontmatter"
	"github.com/starford/sowilo/internal/scan"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tagindex"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and tag index operations.
type Service struct {
	store storage.Provider
	idx   *tagindex.Index
}

// NewService creates a new note service.
func NewService(store storage.Provider, idx *tagindex.Index) *Service {
	return &Service{store: store, idx: idx}
}

// GetNote reads a note from storage and parses its tags.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return buildNoteDetail(path, data), nil
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	info, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	if info.Exists {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.idx.UpdateFile(path, content); err != nil {
		return nil, err
	}
	return buildNoteDetail(path, content), nil
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.idx.UpdateFile(path, content); err != nil {
		return nil, err
	}
	return buildNoteDetail(path, content), nil
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.idx.RemoveFile(path)
}

// RenameNote moves a note on disk and renames its index key in place. Tag
// membership counts never change across a rename.
func (s *Service) RenameNote(_ context.Context, oldPath, newPath string) error {
	info, err := s.store.Exists(oldPath)
	if err != nil {
		return err
	}
	if !info.Exists {
		return apperr.ErrNotFound
	}
	if target, err := s.store.Exists(newPath); err != nil {
		return err
	} else if target.Exists {
		return apperr.ErrAlreadyExists
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		return err
	}
	return s.idx.RenameFile(oldPath, newPath)
}

// ListNotes returns every .md path in the vault, sorted.
func (s *Service) ListNotes(_ context.Context, dir string) ([]string, error) {
	return scan.Scan(s.store, dir, scan.Options{
		MaxDepth:  -1,
		FilesOnly: true,
		Filter: func(e storage.DirEntry, _ string) bool {
			return strings.HasSuffix(e.Name, ".md")
		},
	})
}

func buildNoteDetail(path string, data []byte) *NoteDetail {
	return &NoteDetail{
		Path:      path,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(frontmatter.ExtractTags(data)),
		UpdatedAt: time.Now(),
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
