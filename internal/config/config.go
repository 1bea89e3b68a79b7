// Package config loads the connector's runtime configuration from the
// environment.
package config

import (
	"fmt"
	"os"
)

// Config holds everything the connector binary needs to wire its
// collaborators.
type Config struct {
	// ProjectID is the GCP project holding the BigQuery dataset. Required
	// unless the run is a dry run over a local payload.
	ProjectID string

	// DatasetID is the BigQuery dataset with the accounts, transactions and
	// balance_histories tables.
	DatasetID string

	// ArchiveBucket is the GCS bucket for raw payload snapshots. Archiving is
	// skipped when empty.
	ArchiveBucket string

	// GeminiModel is the model used for transaction classification.
	GeminiModel string
}

// Load reads configuration from the environment. requireStorage relaxes the
// GCP requirements for standalone dry runs.
func Load(requireStorage bool) (*Config, error) {
	cfg := &Config{
		ProjectID:     os.Getenv("SWILE_BQ_PROJECT"),
		DatasetID:     os.Getenv("SWILE_BQ_DATASET"),
		ArchiveBucket: os.Getenv("SWILE_ARCHIVE_BUCKET"),
		GeminiModel:   os.Getenv("SWILE_GEMINI_MODEL"),
	}

	if cfg.DatasetID == "" {
		cfg.DatasetID = "swile"
	}

	if requireStorage && cfg.ProjectID == "" {
		return nil, fmt.Errorf("config.Load: SWILE_BQ_PROJECT environment variable is required")
	}

	return cfg, nil
}
