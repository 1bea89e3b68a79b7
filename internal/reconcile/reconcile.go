// Package reconcile defines the banking reconciliation contract the connector
// consumes. The reconciler owns identity: it matches canonical accounts
// against previously persisted ones, assigns stable storage identifiers, and
// deduplicates transactions by vendor ID.
package reconcile

import (
	"context"

	"github.com/dvloznov/swile-connector/internal/domain"
)

// Reconciler persists canonical accounts and classified transactions.
//
// The returned accounts carry storage-assigned identifiers and the
// authoritative post-save balance; the connector trusts that balance when
// building the daily snapshot, it never tracks balances itself. Transactions
// whose vendor ID has been seen before are not re-created.
type Reconciler interface {
	Save(ctx context.Context, accounts []domain.Account, transactions []domain.Transaction) ([]domain.PersistedAccount, error)
}
