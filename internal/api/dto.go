package api

import (
	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/tagindex"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// RenameNoteRequest is the request body for renaming a note.
type RenameNoteRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

// SetJournalTagsRequest is the request body for replacing a journal entry's tags.
type SetJournalTagsRequest struct {
	Tags []string `json:"tags"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps a vault listing.
type NoteListResponse struct {
	Notes []string `json:"notes"`
	Total int      `json:"total"`
}

// TagListResponse wraps the flat tag list with usage counts.
type TagListResponse struct {
	Tags  []tagindex.TagCount `json:"tags"`
	Files int                 `json:"files"`
	Total int                 `json:"total"`
}

// TagSearchResponse wraps fuzzy tag search results.
type TagSearchResponse struct {
	Results []tagindex.Match `json:"results"`
}

// ReindexResponse reports the totals after a full rebuild.
type ReindexResponse struct {
	Files int `json:"files"`
	Tags  int `json:"tags"`
}
