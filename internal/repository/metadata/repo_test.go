package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/docchat/internal/domain"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	r, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })

	if _, err := r.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return r
}

func testDocument(t *testing.T, id string) domain.Document {
	t.Helper()
	doc, err := domain.NewDocument(id, "notes.txt", "/data/blobs/"+id, time.Now())
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	return doc
}

func TestMigrate_Idempotent(t *testing.T) {
	r := newTestRepo(t)

	applied, err := r.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	if applied != 0 {
		t.Errorf("Migrate() second run applied = %d, want 0", applied)
	}
}

func TestCreateGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	want := testDocument(t, "doc-1")
	if err := r.Create(ctx, want); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.FileName != want.FileName || got.StoragePath != want.StoragePath {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if got.Status != domain.StatusUploaded {
		t.Errorf("Get() status = %q, want uploaded", got.Status)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("Get() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestSetStatus_ValidTransition(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Create(ctx, testDocument(t, "doc-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := r.SetStatus(ctx, "doc-1", domain.StatusProcessing); err != nil {
		t.Fatalf("SetStatus(processing) error = %v", err)
	}
	if err := r.SetStatus(ctx, "doc-1", domain.StatusDone); err != nil {
		t.Fatalf("SetStatus(done) error = %v", err)
	}

	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.StatusDone {
		t.Errorf("status = %q, want done", got.Status)
	}
}

func TestSetStatus_InvalidTransition(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Create(ctx, testDocument(t, "doc-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// uploaded -> done skips processing
	err := r.SetStatus(ctx, "doc-1", domain.StatusDone)
	if !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Errorf("SetStatus() error = %v, want ErrInvalidStatusTransition", err)
	}

	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.StatusUploaded {
		t.Errorf("status after rejected transition = %q, want uploaded", got.Status)
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	r := newTestRepo(t)

	err := r.SetStatus(context.Background(), "missing", domain.StatusProcessing)
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("SetStatus() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestSetFailed_ThenRetryClearsError(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Create(ctx, testDocument(t, "doc-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := r.SetStatus(ctx, "doc-1", domain.StatusProcessing); err != nil {
		t.Fatalf("SetStatus(processing) error = %v", err)
	}
	if err := r.SetFailed(ctx, "doc-1", "extraction failed: bad pdf"); err != nil {
		t.Fatalf("SetFailed() error = %v", err)
	}

	got, err := r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.StatusFailed || got.Error == "" {
		t.Errorf("after SetFailed: status = %q error = %q", got.Status, got.Error)
	}

	// failed -> processing is a retry and clears the message
	if err := r.SetStatus(ctx, "doc-1", domain.StatusProcessing); err != nil {
		t.Fatalf("SetStatus(retry) error = %v", err)
	}
	got, err = r.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != domain.StatusProcessing || got.Error != "" {
		t.Errorf("after retry: status = %q error = %q, want processing with empty error", got.Status, got.Error)
	}
}

func TestList_NewestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	older, err := domain.NewDocument("doc-old", "a.txt", "/data/a", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	newer, err := domain.NewDocument("doc-new", "b.txt", "/data/b", time.Now())
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	if err := r.Create(ctx, older); err != nil {
		t.Fatalf("Create(older) error = %v", err)
	}
	if err := r.Create(ctx, newer); err != nil {
		t.Fatalf("Create(newer) error = %v", err)
	}

	docs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("List() returned %d docs, want 2", len(docs))
	}
	if docs[0].ID != "doc-new" || docs[1].ID != "doc-old" {
		t.Errorf("List() order = [%s, %s], want [doc-new, doc-old]", docs[0].ID, docs[1].ID)
	}
}
