package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/tagindex"
)

// Handler holds API route handlers.
type Handler struct {
	notes   *noteservice.Service
	journal *journal.Store
	idx     *tagindex.Index
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, js *journal.Store, idx *tagindex.Index) *Handler {
	return &Handler{notes: notes, journal: js, idx: idx}
}

// notePath extracts the note path from the URL (everything after /notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	paths, err := h.notes.ListNotes(r.Context(), dir)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: paths, Total: len(paths)})
}

// GetNote handles GET /notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.notes.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.notes.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		} else {
			slog.Error("create note failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/*.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.notes.UpdateNote(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.notes.DeleteNote(r.Context(), path); err != nil {
		slog.Error("delete note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameNote handles POST /notes/rename.
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("old_path and new_path are required"))
		return
	}
	if err := h.notes.RenameNote(r.Context(), req.OldPath, req.NewPath); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("target already exists"))
		default:
			slog.Error("rename note failed",
				slog.String("old_path", req.OldPath),
				slog.String("new_path", req.NewPath),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AllTags handles GET /tags.
func (h *Handler) AllTags(w http.ResponseWriter, _ *http.Request) {
	tags := h.idx.AllTags()
	writeJSON(w, http.StatusOK, TagListResponse{
		Tags:  tags,
		Files: h.idx.FileCount(),
		Total: len(tags),
	})
}

// SearchTags handles GET /tags/search.
func (h *Handler) SearchTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results := h.idx.Search(q)
	if results == nil {
		results = []tagindex.Match{}
	}
	writeJSON(w, http.StatusOK, TagSearchResponse{Results: results})
}

// SetJournalTags handles PUT /journal/{date}/entries/{id}/tags: it replaces
// the entry's tags in the day document and reindexes the composite key.
func (h *Handler) SetJournalTags(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	entryID := chi.URLParam(r, "id")

	var req SetJournalTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	doc, err := h.journal.ReadDay(date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
		return
	}
	found := false
	for i := range doc.Entries {
		if doc.Entries[i].ID == entryID {
			doc.Entries[i].Tags = req.Tags
			found = true
			break
		}
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("entry not found"))
		return
	}
	if err := h.journal.WriteDay(date, doc); err != nil {
		slog.Error("write journal day failed", slog.String("date", date), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := h.idx.UpdateJournalEntry(date, entryID, req.Tags); err != nil {
		slog.Warn("journal reindex persist failed", slog.String("date", date), slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteJournalEntry handles DELETE /journal/{date}/entries/{id}.
func (h *Handler) DeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	entryID := chi.URLParam(r, "id")

	doc, err := h.journal.ReadDay(date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
		return
	}
	kept := doc.Entries[:0]
	found := false
	for _, e := range doc.Entries {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("entry not found"))
		return
	}
	doc.Entries = kept
	if err := h.journal.WriteDay(date, doc); err != nil {
		slog.Error("write journal day failed", slog.String("date", date), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := h.idx.RemoveJournalEntry(date, entryID); err != nil {
		slog.Warn("journal reindex persist failed", slog.String("date", date), slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /reindex: a full reset-and-rescan of both trees.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := h.idx.Build(r.Context()); err != nil {
		if errors.Is(err, tagindex.ErrBuildInProgress) {
			writeJSON(w, http.StatusConflict, errorBody("reindex already running"))
			return
		}
		slog.Error("reindex failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{
		Files: h.idx.FileCount(),
		Tags:  h.idx.TagCountTotal(),
	})
}
