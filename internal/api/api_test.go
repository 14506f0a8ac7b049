package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/starford/sowilo/internal/journal"
	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/tagindex"
	"github.com/starford/sowilo/internal/testutil"
)

type apiEnv struct {
	server *httptest.Server
	idx    *tagindex.Index
	vault  string
}

func newAPIEnv(t *testing.T, authEnabled bool, token string) *apiEnv {
	t.Helper()
	vaultDir, store, idx := testutil.TestIndex(t)
	js := journal.NewStore(store, "journal", ".yaml", testutil.Logger())
	svc := noteservice.NewService(store, idx)

	srv := httptest.NewServer(NewRouter(svc, js, idx, authEnabled, token, nil))
	t.Cleanup(srv.Close)
	return &apiEnv{server: srv, idx: idx, vault: vaultDir}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestNoteCRUD(t *testing.T) {
	env := newAPIEnv(t, false, "")

	resp := env.do(t, http.MethodPost, "/notes",
		CreateNoteRequest{Path: "topics/go.md", Content: "---\ntags: [go]\n---\n# Go\n"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[NoteDetail](t, resp)
	if created.Path != "topics/go.md" || created.Checksum == "" {
		t.Errorf("create response = %+v", created)
	}

	resp = env.do(t, http.MethodGet, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decode[NoteDetail](t, resp)
	if !reflect.DeepEqual(got.Tags, []string{"go"}) {
		t.Errorf("tags = %v", got.Tags)
	}

	// Stale checksum is rejected.
	resp = env.do(t, http.MethodPut, "/notes/topics/go.md",
		UpdateNoteRequest{Content: "changed"}, map[string]string{"If-Match": `"bogus"`})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale update status = %d, want 409", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPut, "/notes/topics/go.md",
		UpdateNoteRequest{Content: "---\ntags: [golang]\n---\n"},
		map[string]string{"If-Match": `"` + created.Checksum + `"`})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	if env.idx.FilesFor("go") != nil {
		t.Error("old tag survived note update")
	}

	resp = env.do(t, http.MethodDelete, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	env := newAPIEnv(t, false, "")

	resp := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "a.md"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing content status = %d", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "a.md", Content: "x"}, nil)
	resp = env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "a.md", Content: "y"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}
}

func TestRenameNote(t *testing.T) {
	env := newAPIEnv(t, false, "")
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "old.md", Content: "---\ntags: [t]\n---\n"}, nil)

	resp := env.do(t, http.MethodPost, "/notes/rename",
		RenameNoteRequest{OldPath: "old.md", NewPath: "new.md"}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("rename status = %d", resp.StatusCode)
	}
	if got := env.idx.FilesFor("t"); !reflect.DeepEqual(got, []string{"new.md"}) {
		t.Errorf("index after rename = %v", got)
	}

	resp = env.do(t, http.MethodPost, "/notes/rename",
		RenameNoteRequest{OldPath: "ghost.md", NewPath: "x.md"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("rename missing status = %d", resp.StatusCode)
	}
}

func TestListNotes(t *testing.T) {
	env := newAPIEnv(t, false, "")
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "b.md", Content: "x"}, nil)
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "a/deep.md", Content: "x"}, nil)

	resp := env.do(t, http.MethodGet, "/notes", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list := decode[NoteListResponse](t, resp)
	if list.Total != 2 || !reflect.DeepEqual(list.Notes, []string{"a/deep.md", "b.md"}) {
		t.Errorf("list = %+v", list)
	}
}

func TestTagsEndpoints(t *testing.T) {
	env := newAPIEnv(t, false, "")
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "a.md", Content: "---\ntags: [project, work]\n---\n"}, nil)
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "b.md", Content: "---\ntags: [project]\n---\n"}, nil)

	resp := env.do(t, http.MethodGet, "/tags", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tags status = %d", resp.StatusCode)
	}
	tags := decode[TagListResponse](t, resp)
	want := []tagindex.TagCount{{Tag: "project", Count: 2}, {Tag: "work", Count: 1}}
	if !reflect.DeepEqual(tags.Tags, want) || tags.Files != 2 {
		t.Errorf("tags = %+v, want %v with 2 files", tags, want)
	}

	resp = env.do(t, http.MethodGet, "/tags/search?q=proj", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	search := decode[TagSearchResponse](t, resp)
	if len(search.Results) != 1 || search.Results[0].Tag != "project" || search.Results[0].Count != 2 {
		t.Errorf("search results = %+v", search.Results)
	}

	resp = env.do(t, http.MethodGet, "/tags/search", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("search without q status = %d", resp.StatusCode)
	}
}

func TestReindex(t *testing.T) {
	env := newAPIEnv(t, false, "")
	testutil.WriteFile(t, env.vault, "seed.md", "---\ntags: [seed]\n---\n")

	resp := env.do(t, http.MethodPost, "/reindex", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reindex status = %d", resp.StatusCode)
	}
	out := decode[ReindexResponse](t, resp)
	if out.Files != 1 || out.Tags != 1 {
		t.Errorf("reindex response = %+v", out)
	}
}

func TestJournalTagEndpoints(t *testing.T) {
	env := newAPIEnv(t, false, "")
	testutil.WriteFile(t, env.vault, "journal/2025/01/2025-01-15.yaml",
		"entries:\n  - id: e1\n    text: stand-up\n")

	resp := env.do(t, http.MethodPut, "/journal/2025-01-15/entries/e1/tags",
		SetJournalTagsRequest{Tags: []string{"daily"}}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set tags status = %d", resp.StatusCode)
	}
	key := journal.Key("2025-01-15", "e1")
	if got := env.idx.TagsFor(key); !reflect.DeepEqual(got, []string{"daily"}) {
		t.Errorf("TagsFor(%s) = %v", key, got)
	}

	resp = env.do(t, http.MethodPut, "/journal/2025-01-15/entries/ghost/tags",
		SetJournalTagsRequest{Tags: []string{"x"}}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("set tags on missing entry status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPut, "/journal/not-a-date/entries/e1/tags",
		SetJournalTagsRequest{Tags: []string{"x"}}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("set tags with bad date status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/journal/2025-01-15/entries/e1", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete entry status = %d", resp.StatusCode)
	}
	if env.idx.TagsFor(key) != nil {
		t.Error("composite key still indexed after entry deletion")
	}
}

func TestAuth(t *testing.T) {
	env := newAPIEnv(t, true, "sekrit")

	resp := env.do(t, http.MethodGet, "/tags", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/tags", nil, map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/tags", nil, map[string]string{"Authorization": "Bearer sekrit"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d", resp.StatusCode)
	}
}
