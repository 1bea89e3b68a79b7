// The connector binary runs one Swile import: fetch (or replay) the raw
// provider payload, normalize and classify it, reconcile accounts and
// transactions, and merge today's balances into the balance history
// documents.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"

	"github.com/dvloznov/swile-connector/internal/archive"
	"github.com/dvloznov/swile-connector/internal/classify"
	"github.com/dvloznov/swile-connector/internal/config"
	"github.com/dvloznov/swile-connector/internal/connector"
	infra "github.com/dvloznov/swile-connector/internal/infra/bigquery"
	"github.com/dvloznov/swile-connector/internal/logger"
	"github.com/dvloznov/swile-connector/internal/swile"
)

func main() {
	log := logger.New()

	payloadURI := flag.String("payload", "", "payload to import: a local JSON file or a gs:// snapshot URI")
	dryRun := flag.Bool("dry-run", false, "normalize and classify only, persist nothing")
	standalone := flag.Bool("standalone", false, "run without GCP: local payload, passthrough classifier")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	if *payloadURI == "" {
		log.Fatal().Msg("Error: -payload is required (credential-based fetching is handled by the vault runner, not this binary)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, err := config.Load(!*standalone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	job := &connector.Job{DryRun: *dryRun}

	if *standalone {
		job.Source = &swile.FileSource{Path: *payloadURI}
		job.Classifier = classify.Passthrough{}
		if !*dryRun {
			log.Fatal().Msg("Error: -standalone requires -dry-run, there is no store to persist to")
		}
	} else {
		bq, err := infra.NewClient(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bq.Close()

		job.Reconciler = infra.NewReconciler(bq)
		job.Histories = infra.NewHistoryStore(bq)

		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GenAI client")
		}
		job.Classifier = classify.NewGemini(genaiClient, cfg.GeminiModel, nil)

		if strings.HasPrefix(*payloadURI, "gs://") || cfg.ArchiveBucket != "" {
			gcs, err := storage.NewClient(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create storage client")
			}
			defer gcs.Close()

			if strings.HasPrefix(*payloadURI, "gs://") {
				job.Source = &swile.GCSSource{Client: gcs, URI: *payloadURI}
			}
			if cfg.ArchiveBucket != "" {
				job.Archiver = archive.NewGCSArchiver(gcs, cfg.ArchiveBucket)
			}
		}
		if job.Source == nil {
			job.Source = &swile.FileSource{Path: *payloadURI}
		}
	}

	report, err := job.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Connector run failed")
		os.Exit(1)
	}
	if len(report.FailedAccounts) > 0 {
		log.Error().
			Strs("account_ids", report.FailedAccounts).
			Msg("Connector run finished with per-account failures")
		os.Exit(1)
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("accounts", report.Accounts).
		Int("transactions", report.Transactions).
		Int("histories_saved", report.HistoriesSaved).
		Msg("Connector run succeeded")
}
