package balancehistory

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/swile-connector/internal/domain"
	"github.com/dvloznov/swile-connector/internal/logger"
)

// SyncResult is the outcome of synchronizing one account's balance history.
// Exactly one of Document and Err is set.
type SyncResult struct {
	AccountID string
	Document  *Document
	Err       error
}

// Synchronizer merges the current balance of reconciled accounts into their
// balance history documents. Each account is handled independently; one
// account's failure never aborts the others.
type Synchronizer struct {
	store Store

	// Now is the clock used to derive the year and day key. Overridable in
	// tests; defaults to time.Now.
	Now func() time.Time
}

// NewSynchronizer creates a Synchronizer on top of the given store.
func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{
		store: store,
		Now:   time.Now,
	}
}

// SyncAll fetches or creates the current year's history for every account
// concurrently and merges today's balance into it. Results come back in input
// order, one per account, each carrying either the updated document or the
// error that stopped that account.
func (s *Synchronizer) SyncAll(ctx context.Context, accounts []domain.PersistedAccount) []SyncResult {
	results := make([]SyncResult, len(accounts))

	var g errgroup.Group
	for i, account := range accounts {
		g.Go(func() error {
			doc, err := s.syncOne(ctx, account)
			results[i] = SyncResult{AccountID: account.ID, Document: doc, Err: err}
			// Failures are isolated per account, never propagated to the group.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// syncOne loads or creates the (year, account) document and sets today's
// entry to the account's current balance. Overwrite semantics per calendar
// day make repeated runs on the same day idempotent.
func (s *Synchronizer) syncOne(ctx context.Context, account domain.PersistedAccount) (*Document, error) {
	log := logger.FromContext(ctx)

	now := s.Now()
	year := now.Year()
	today := now.Format(DayFormat)

	doc, err := s.store.FindByYearAndAccount(ctx, year, account.ID)
	if err != nil {
		return nil, fmt.Errorf("syncOne: finding history for year %d account %s: %w", year, account.ID, err)
	}

	if doc != nil {
		log.Info().
			Int("year", year).
			Str("account_id", account.ID).
			Msg("Found existing balance history document")
	} else {
		log.Info().
			Int("year", year).
			Str("account_id", account.ID).
			Msg("Balance history document not found, creating a new one")
		doc = NewDocument(year, account.ID)
	}

	if doc.Balances == nil {
		doc.Balances = map[string]float64{}
	}
	doc.Balances[today] = account.Balance

	return doc, nil
}

// Documents extracts the successfully synchronized documents from results,
// ready for a batch upsert.
func Documents(results []SyncResult) []*Document {
	docs := make([]*Document, 0, len(results))
	for _, res := range results {
		if res.Err == nil && res.Document != nil {
			docs = append(docs, res.Document)
		}
	}
	return docs
}

// Failed extracts the account IDs whose synchronization failed.
func Failed(results []SyncResult) []string {
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.AccountID)
		}
	}
	return failed
}
