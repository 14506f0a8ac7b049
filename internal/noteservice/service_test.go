package noteservice

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/tagindex"
	"github.com/starford/sowilo/internal/testutil"
)

func testService(t *testing.T) (*Service, *tagindex.Index) {
	t.Helper()
	_, store, idx := testutil.TestIndex(t)
	return NewService(store, idx), idx
}

const tagged = "---\ntags: [work]\n---\n# Note\n"

func TestCreateGet(t *testing.T) {
	svc, idx := testService(t)
	ctx := context.Background()

	created, err := svc.CreateNote(ctx, "a.md", []byte(tagged))
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if created.Path != "a.md" || created.Checksum == "" {
		t.Errorf("CreateNote detail = %+v", created)
	}
	if !reflect.DeepEqual(created.Tags, []string{"work"}) {
		t.Errorf("Tags = %v, want [work]", created.Tags)
	}

	got, err := svc.GetNote(ctx, "a.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Content != tagged || got.Checksum != created.Checksum {
		t.Errorf("GetNote = %+v", got)
	}

	if files := idx.FilesFor("work"); !reflect.DeepEqual(files, []string{"a.md"}) {
		t.Errorf("index not updated on create: %v", files)
	}
}

func TestCreate_ExistingRejected(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte(tagged)); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateNote(ctx, "a.md", []byte("other"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("CreateNote on existing = %v, want ErrAlreadyExists", err)
	}
}

func TestGet_Missing(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.GetNote(context.Background(), "nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote missing = %v, want ErrNotFound", err)
	}
}

func TestUpdate_ChecksumGuard(t *testing.T) {
	svc, idx := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte(tagged)); err != nil {
		t.Fatal(err)
	}

	next := "---\ntags: [home]\n---\n"
	if _, err := svc.UpdateNote(ctx, "a.md", []byte(next), "stale-sum"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("UpdateNote with stale checksum = %v, want ErrConflict", err)
	}

	detail, err := svc.UpdateNote(ctx, "a.md", []byte(next), checksum.Sum([]byte(tagged)))
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if !reflect.DeepEqual(detail.Tags, []string{"home"}) {
		t.Errorf("Tags after update = %v", detail.Tags)
	}
	if idx.FilesFor("work") != nil {
		t.Error("old tag survived the update")
	}
	if got := idx.FilesFor("home"); !reflect.DeepEqual(got, []string{"a.md"}) {
		t.Errorf("FilesFor(home) = %v", got)
	}
}

func TestUpdate_EmptyIfMatchSkipsGuard(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte(tagged)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateNote(ctx, "a.md", []byte("new"), ""); err != nil {
		t.Errorf("UpdateNote without If-Match: %v", err)
	}
}

func TestUpdate_Missing(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.UpdateNote(context.Background(), "nope.md", []byte("x"), "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateNote missing = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc, idx := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte(tagged)); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteNote(ctx, "a.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := svc.GetNote(ctx, "a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote after delete = %v, want ErrNotFound", err)
	}
	if idx.FilesFor("work") != nil {
		t.Error("index entry survived the delete")
	}
	if err := svc.DeleteNote(ctx, "a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteNote missing = %v, want ErrNotFound", err)
	}
}

func TestRename(t *testing.T) {
	svc, idx := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "old.md", []byte(tagged)); err != nil {
		t.Fatal(err)
	}
	if err := svc.RenameNote(ctx, "old.md", "sub/new.md"); err != nil {
		t.Fatalf("RenameNote: %v", err)
	}

	got, err := svc.GetNote(ctx, "sub/new.md")
	if err != nil {
		t.Fatalf("GetNote moved: %v", err)
	}
	if got.Content != tagged {
		t.Errorf("moved content = %q", got.Content)
	}
	if files := idx.FilesFor("work"); !reflect.DeepEqual(files, []string{"sub/new.md"}) {
		t.Errorf("index key not renamed: %v", files)
	}

	if err := svc.RenameNote(ctx, "ghost.md", "x.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("RenameNote missing source = %v, want ErrNotFound", err)
	}
	if _, err := svc.CreateNote(ctx, "taken.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RenameNote(ctx, "sub/new.md", "taken.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("RenameNote onto existing = %v, want ErrAlreadyExists", err)
	}
}

func TestListNotes(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	for _, p := range []string{"b.md", "a/deep.md"} {
		if _, err := svc.CreateNote(ctx, p, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.ListNotes(ctx, "")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a/deep.md", "b.md"}) {
		t.Errorf("ListNotes = %v", got)
	}
}
