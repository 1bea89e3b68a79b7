// Package connector runs one import: fetch raw Swile data, normalize it,
// classify and reconcile the transactions, then merge today's balances into
// the per-year balance history documents.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/swile-connector/internal/archive"
	"github.com/dvloznov/swile-connector/internal/balancehistory"
	"github.com/dvloznov/swile-connector/internal/classify"
	"github.com/dvloznov/swile-connector/internal/logger"
	"github.com/dvloznov/swile-connector/internal/normalize"
	"github.com/dvloznov/swile-connector/internal/reconcile"
	"github.com/dvloznov/swile-connector/internal/swile"
)

// Job wires one connector run. All collaborators are injected; the job owns
// only the orchestration and the normalization in between.
type Job struct {
	Source     swile.Source
	Classifier classify.Classifier
	Reconciler reconcile.Reconciler
	Histories  balancehistory.Store

	// Archiver is optional; when set, the raw payload is snapshotted before
	// processing.
	Archiver archive.Archiver

	// DryRun stops the run after normalization and classification, before
	// anything is persisted.
	DryRun bool

	// Now is the processing clock. Defaults to time.Now.
	Now func() time.Time
}

// Report summarizes one run. FailedAccounts lists accounts whose balance
// history could not be synchronized while the rest of the run succeeded.
type Report struct {
	RunID          string
	Accounts       int
	Transactions   int
	HistoriesSaved int
	FailedAccounts []string
	ArchiveURI     string
}

// Run executes the job once. Adapter failures abort the run and surface as
// the returned error; per-account balance failures are isolated and reported
// through the Report instead.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	log := logger.FromContext(ctx)
	now := j.Now
	if now == nil {
		now = time.Now
	}

	report := &Report{RunID: uuid.NewString()}
	log.Info().Str("run_id", report.RunID).Msg("Starting connector run")

	payload, err := j.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("Run: fetching provider data: %w", err)
	}
	log.Info().
		Int("cards", len(payload.Cards)).
		Int("operations", len(payload.Operations)).
		Msg("Successfully fetched data")

	if j.Archiver != nil {
		uri, err := j.Archiver.ArchiveRun(ctx, report.RunID, payload)
		if err != nil {
			// Archiving is an audit aid, not part of the import contract.
			log.Warn().Err(err).Msg("Failed to archive raw payload")
		} else {
			report.ArchiveURI = uri
			log.Info().Str("archive_uri", uri).Msg("Archived raw payload")
		}
	}

	accounts, err := normalize.Accounts(payload.Cards)
	if err != nil {
		return nil, fmt.Errorf("Run: normalizing accounts: %w", err)
	}
	transactions, err := normalize.Transactions(payload.Operations, now())
	if err != nil {
		return nil, fmt.Errorf("Run: normalizing transactions: %w", err)
	}
	report.Accounts = len(accounts)
	report.Transactions = len(transactions)
	log.Info().
		Int("accounts", len(accounts)).
		Int("transactions", len(transactions)).
		Msg("Parsed provider payload")

	classified, err := j.Classifier.Classify(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("Run: classifying transactions: %w", err)
	}

	if j.DryRun {
		log.Info().Msg("Dry run, skipping reconciliation and balance history sync")
		return report, nil
	}

	persisted, err := j.Reconciler.Save(ctx, accounts, classified)
	if err != nil {
		return nil, fmt.Errorf("Run: reconciling: %w", err)
	}
	log.Info().Int("accounts", len(persisted)).Msg("Reconciled accounts")

	sync := balancehistory.NewSynchronizer(j.Histories)
	sync.Now = now
	results := sync.SyncAll(ctx, persisted)

	for _, res := range results {
		if res.Err != nil {
			log.Error().Err(res.Err).Str("account_id", res.AccountID).Msg("Balance history sync failed")
		}
	}
	report.FailedAccounts = balancehistory.Failed(results)

	docs := balancehistory.Documents(results)
	if len(docs) == 0 && len(report.FailedAccounts) > 0 {
		return report, fmt.Errorf("Run: balance history sync failed for all %d accounts", len(report.FailedAccounts))
	}

	saved, err := j.Histories.UpsertBatch(ctx, docs)
	if err != nil {
		return report, fmt.Errorf("Run: saving balance histories: %w", err)
	}
	report.HistoriesSaved = len(saved)

	log.Info().
		Int("histories_saved", report.HistoriesSaved).
		Int("accounts_failed", len(report.FailedAccounts)).
		Str("run_id", report.RunID).
		Msg("Connector run completed")

	return report, nil
}
