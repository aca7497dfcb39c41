package upload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yfitg/scout/internal/domain"
)

func storedArtifact() *domain.ReportArtifact {
	return &domain.ReportArtifact{
		PDF:         []byte("%PDF-1.4 stored"),
		SHA256:      "cafebabe",
		ConsentID:   "consent-9",
		DeviceID:    "scout-042",
		GeneratedAt: time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		Degraded:    true,
	}
}

func TestSaveWritesArtifactAndMetadata(t *testing.T) {
	t.Parallel()

	store := &LocalStore{Dir: t.TempDir()}
	pdfPath, err := store.Save(storedArtifact(), "partial run")
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(pdfPath) != "report_scout-042_20260315_103000.pdf" {
		t.Fatalf("unexpected artifact name: %s", pdfPath)
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.4 stored" {
		t.Fatal("artifact bytes corrupted")
	}

	metaPath := pdfPath[:len(pdfPath)-4] + ".json"
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	var meta storedMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.ConsentID != "consent-9" || meta.FileHash != "cafebabe" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.StatusNote != "partial run" || !meta.Degraded {
		t.Fatalf("status fields lost: %+v", meta)
	}
}

func TestSavePendingAndListing(t *testing.T) {
	t.Parallel()

	store := &LocalStore{Dir: t.TempDir()}

	if pending, err := store.Pending(); err != nil || len(pending) != 0 {
		t.Fatalf("fresh store should have no pending artifacts: %v %v", pending, err)
	}

	path, err := store.SavePending(storedArtifact(), "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(filepath.Dir(path)) != "pending_upload" {
		t.Fatalf("pending artifact outside pending_upload: %s", path)
	}

	pending, err := store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != path {
		t.Fatalf("pending listing wrong: %v", pending)
	}
}
