package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"yfitg/scout/internal/domain"
)

// LocalStore is the device's durable artifact storage. Every artifact lands
// here before upload; artifacts without a receipt stay tagged pending_upload
// for a later manual or scheduled retry sweep.
type LocalStore struct {
	Dir string
}

type storedMetadata struct {
	ConsentID   string `json:"consent_id"`
	DeviceID    string `json:"device_id"`
	FileHash    string `json:"file_hash"`
	GeneratedAt string `json:"generated_at"`
	StatusNote  string `json:"status_note,omitempty"`
	Degraded    bool   `json:"degraded,omitempty"`
}

// Save writes the artifact and its metadata into the reports directory and
// returns the PDF path.
func (s *LocalStore) Save(artifact *domain.ReportArtifact, statusNote string) (string, error) {
	return s.write(s.Dir, artifact, statusNote)
}

// SavePending writes the artifact into the pending_upload directory. Called
// when retries are exhausted or the collector rejected the upload outright.
func (s *LocalStore) SavePending(artifact *domain.ReportArtifact, statusNote string) (string, error) {
	return s.write(filepath.Join(s.Dir, "pending_upload"), artifact, statusNote)
}

// Pending lists the PDF paths awaiting upload.
func (s *LocalStore) Pending() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "pending_upload", "*.pdf"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *LocalStore) write(dir string, artifact *domain.ReportArtifact, statusNote string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	stamp := artifact.GeneratedAt.UTC().Format("20060102_150405")
	base := fmt.Sprintf("report_%s_%s", artifact.DeviceID, stamp)
	pdfPath := filepath.Join(dir, base+".pdf")

	if err := os.WriteFile(pdfPath, artifact.PDF, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	meta := storedMetadata{
		ConsentID:   artifact.ConsentID,
		DeviceID:    artifact.DeviceID,
		FileHash:    artifact.SHA256,
		GeneratedAt: artifact.GeneratedAt.UTC().Format(time.RFC3339),
		StatusNote:  statusNote,
		Degraded:    artifact.Degraded,
	}
	f, err := os.Create(filepath.Join(dir, base+".json"))
	if err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	return pdfPath, nil
}
