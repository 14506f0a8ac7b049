package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/tagindex"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes *noteservice.Service, js *journal.Store, idx *tagindex.Index, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes, js, idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/rename", h.RenameNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Tag index.
	r.Get("/tags", h.AllTags)
	r.Get("/tags/search", h.SearchTags)
	r.Post("/reindex", h.Reindex)

	// Journal entry tags.
	r.Put("/journal/{date}/entries/{id}/tags", h.SetJournalTags)
	r.Delete("/journal/{date}/entries/{id}", h.DeleteJournalEntry)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
