// Package upload transmits report artifacts to the collector with
// authenticated retry, and retains them locally until a receipt exists.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"yfitg/scout/internal/domain"
	"yfitg/scout/internal/retry"

	log "github.com/sirupsen/logrus"
)

type Uploader struct {
	Log    *log.Entry
	URL    string
	Token  string
	Client *http.Client
	Store  *LocalStore

	Retry  retry.Config
	Budget time.Duration // overall time budget across all attempts
}

type collectorResponse struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	FileHash   string `json:"file_hash"`
	ConsentID  string `json:"consent_id"`
	ReceivedAt string `json:"received_at"`
}

// Upload sends the artifact and its metadata to the collector. Transient
// failures (connection errors, 5xx) are retried with backoff; a 4xx is fatal
// and not retried. In every failure case the artifact is persisted under
// pending_upload before the error is returned; it is never deleted without
// a receipt.
func (u *Uploader) Upload(ctx context.Context, artifact *domain.ReportArtifact, statusNote string) (*domain.UploadReceipt, error) {
	if u.Store != nil {
		path, err := u.Store.Save(artifact, statusNote)
		if err != nil {
			u.Log.WithError(err).Error("Could not persist artifact before upload")
		} else {
			u.Log.WithField("path", path).Info("Artifact persisted")
		}
	}

	if u.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Budget)
		defer cancel()
	}

	var receipt *domain.UploadReceipt
	err := retry.Do(ctx, u.Retry, func() error {
		r, err := u.attempt(ctx, artifact, statusNote)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})

	if err != nil {
		u.Log.WithError(err).Error("Upload failed, retaining artifact locally")
		if u.Store != nil {
			if path, serr := u.Store.SavePending(artifact, statusNote); serr != nil {
				u.Log.WithError(serr).Error("Could not persist pending artifact")
			} else {
				u.Log.WithField("path", path).Warn("Artifact tagged pending_upload")
			}
		}
		return nil, err
	}

	u.Log.WithFields(log.Fields{
		"consent_id": receipt.ConsentID,
		"filename":   receipt.StoredFilename,
	}).Info("Report uploaded")
	return receipt, nil
}

func (u *Uploader) attempt(ctx context.Context, artifact *domain.ReportArtifact, statusNote string) (*domain.UploadReceipt, error) {
	body, contentType, err := multipartBody(artifact, statusNote)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("encode upload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, body)
	if err != nil {
		return nil, retry.Stop(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+u.Token)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collector request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out collectorResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode collector response: %w", err)
		}
		receivedAt, _ := time.Parse(time.RFC3339, out.ReceivedAt)
		if receivedAt.IsZero() {
			receivedAt = time.Now().UTC()
		}
		return &domain.UploadReceipt{
			ConsentID:      out.ConsentID,
			StoredFilename: out.Filename,
			FileHash:       out.FileHash,
			ReceivedAt:     receivedAt,
		}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Auth or validation problem; retrying cannot help.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, retry.Stop(fmt.Errorf("%w: %d %s", domain.ErrUploadAuth, resp.StatusCode, bytes.TrimSpace(msg)))

	default:
		return nil, fmt.Errorf("collector returned %d", resp.StatusCode)
	}
}

func multipartBody(artifact *domain.ReportArtifact, statusNote string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	filename := fmt.Sprintf("report_%s_%s.pdf", artifact.DeviceID,
		artifact.GeneratedAt.UTC().Format("20060102_150405"))
	part, err := w.CreateFormFile("report", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(artifact.PDF); err != nil {
		return nil, "", err
	}

	meta, err := json.Marshal(map[string]any{
		"consent_id":   artifact.ConsentID,
		"device_id":    artifact.DeviceID,
		"filename":     filename,
		"file_hash":    artifact.SHA256,
		"file_size":    len(artifact.PDF),
		"generated_at": artifact.GeneratedAt.UTC().Format(time.RFC3339),
		"status_note":  statusNote,
		"degraded":     artifact.Degraded,
	})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("metadata", string(meta)); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
