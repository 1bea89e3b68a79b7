// Package archive persists raw provider payload snapshots so runs can be
// audited and replayed without hitting the provider again.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/swile-connector/internal/swile"
)

// Archiver stores one run's raw payload and returns a URI it can be read
// back from.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, payload *swile.Payload) (string, error)
}

// GCSArchiver writes payload snapshots as JSON objects to a GCS bucket. It
// assumes Application Default Credentials are configured.
type GCSArchiver struct {
	client *storage.Client
	bucket string

	// Now derives the date prefix of object names. Overridable in tests.
	Now func() time.Time
}

// NewGCSArchiver creates an archiver targeting the given bucket.
func NewGCSArchiver(client *storage.Client, bucket string) *GCSArchiver {
	return &GCSArchiver{client: client, bucket: bucket, Now: time.Now}
}

// ArchiveRun implements the Archiver interface. Objects are named
// swile/raw/<date>/<runID>.json.
func (a *GCSArchiver) ArchiveRun(ctx context.Context, runID string, payload *swile.Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ArchiveRun: marshal payload: %w", err)
	}

	objectName := fmt.Sprintf("swile/raw/%s/%s.json", a.Now().UTC().Format("2006-01-02"), runID)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveRun: writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveRun: finalize upload of %s: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}
