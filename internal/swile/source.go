package swile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

// Source provides the raw provider data for one run.
type Source interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// FileSource reads a previously captured payload from a local JSON file.
// Used in standalone runs and tests.
type FileSource struct {
	Path string
}

// Fetch implements the Source interface.
func (s *FileSource) Fetch(ctx context.Context) (*Payload, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("FileSource.Fetch: reading %q: %w", s.Path, err)
	}
	return decodePayload(data)
}

// GCSSource reads an archived payload snapshot from Google Cloud Storage,
// e.g. one written by a previous run's archiver.
type GCSSource struct {
	Client *storage.Client
	URI    string // gs://bucket/object
}

// Fetch implements the Source interface.
func (s *GCSSource) Fetch(ctx context.Context) (*Payload, error) {
	bucket, object, err := SplitGCSURI(s.URI)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}

	rc, err := s.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	return decodePayload(data)
}

// SplitGCSURI splits "gs://bucket/path/to/object" into bucket and object path.
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func decodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decodePayload: %w", err)
	}
	return &p, nil
}
