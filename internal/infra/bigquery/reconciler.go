package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/swile-connector/internal/domain"
	"github.com/dvloznov/swile-connector/internal/logger"
)

// Reconciler implements reconcile.Reconciler on BigQuery. Accounts are
// matched by vendor ID; transactions are deduplicated by vendor ID and only
// unseen ones are inserted.
type Reconciler struct {
	client *Client
}

// NewReconciler creates a Reconciler on the given client.
func NewReconciler(client *Client) *Reconciler {
	return &Reconciler{client: client}
}

// Save implements reconcile.Reconciler.
func (r *Reconciler) Save(ctx context.Context, accounts []domain.Account, transactions []domain.Transaction) ([]domain.PersistedAccount, error) {
	persisted := make([]domain.PersistedAccount, 0, len(accounts))
	for _, account := range accounts {
		pa, err := r.saveAccount(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("Save: account %s: %w", account.VendorID, err)
		}
		persisted = append(persisted, pa)
	}

	if err := r.saveTransactions(ctx, persisted, transactions); err != nil {
		return nil, fmt.Errorf("Save: %w", err)
	}

	return persisted, nil
}

// saveAccount matches the canonical account against a previously persisted
// one by vendor ID, updating its balance, or creates a new record. The
// returned account carries the storage identity and the post-save balance.
func (r *Reconciler) saveAccount(ctx context.Context, account domain.Account) (domain.PersistedAccount, error) {
	existingID, err := r.findAccountIDByVendorID(ctx, account.VendorID)
	if err != nil {
		return domain.PersistedAccount{}, err
	}

	now := time.Now()

	if existingID != "" {
		query := fmt.Sprintf(`
			UPDATE %s
			SET balance = @balance,
			    label = @label,
			    updated_ts = @now
			WHERE account_id = @account_id
		`, r.client.table(accountsTable))

		err := r.client.runDML(ctx, query, []bigquery.QueryParameter{
			{Name: "balance", Value: account.Balance},
			{Name: "label", Value: account.Label},
			{Name: "now", Value: now},
			{Name: "account_id", Value: existingID},
		})
		if err != nil {
			return domain.PersistedAccount{}, fmt.Errorf("saveAccount: updating: %w", err)
		}
		return domain.PersistedAccount{ID: existingID, Account: account}, nil
	}

	newID := uuid.NewString()
	query := fmt.Sprintf(`
		INSERT INTO %s (
			account_id, vendor_id, account_number,
			currency, institution_label, label,
			balance, account_type,
			created_ts, updated_ts
		)
		VALUES (
			@account_id, @vendor_id, @account_number,
			@currency, @institution_label, @label,
			@balance, @account_type,
			@now, @now
		)
	`, r.client.table(accountsTable))

	err = r.client.runDML(ctx, query, []bigquery.QueryParameter{
		{Name: "account_id", Value: newID},
		{Name: "vendor_id", Value: account.VendorID},
		{Name: "account_number", Value: account.Number},
		{Name: "currency", Value: account.Currency},
		{Name: "institution_label", Value: account.InstitutionLabel},
		{Name: "label", Value: account.Label},
		{Name: "balance", Value: account.Balance},
		{Name: "account_type", Value: account.Type},
		{Name: "now", Value: now},
	})
	if err != nil {
		return domain.PersistedAccount{}, fmt.Errorf("saveAccount: inserting: %w", err)
	}

	return domain.PersistedAccount{ID: newID, Account: account}, nil
}

func (r *Reconciler) findAccountIDByVendorID(ctx context.Context, vendorID string) (string, error) {
	query := fmt.Sprintf(`
		SELECT account_id
		FROM %s
		WHERE vendor_id = @vendor_id
		ORDER BY created_ts DESC
		LIMIT 1
	`, r.client.table(accountsTable))

	q := r.client.bq.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "vendor_id", Value: vendorID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("findAccountIDByVendorID: reading query: %w", err)
	}

	var row struct {
		AccountID string `bigquery:"account_id"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("findAccountIDByVendorID: iterating: %w", err)
	}
	return row.AccountID, nil
}

// saveTransactions inserts the transactions whose vendor ID has not been
// persisted before. Transactions are linked to their reconciled account via
// the ORIGIN wallet uuid.
func (r *Reconciler) saveTransactions(ctx context.Context, accounts []domain.PersistedAccount, transactions []domain.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	vendorIDs := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		vendorIDs = append(vendorIDs, tx.VendorID)
	}

	seen, err := r.existingVendorIDs(ctx, vendorIDs)
	if err != nil {
		return fmt.Errorf("saveTransactions: %w", err)
	}

	accountIDByVendor := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		accountIDByVendor[acc.VendorID] = acc.ID
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(transactions))
	for _, tx := range transactions {
		if seen[tx.VendorID] {
			continue
		}
		rows = append(rows, &TransactionRow{
			TransactionID:     uuid.NewString(),
			VendorID:          tx.VendorID,
			VendorAccountID:   tx.VendorAccountID,
			AccountID:         accountIDByVendor[tx.VendorAccountID],
			Amount:            tx.Amount,
			Currency:          tx.Currency,
			Date:              tx.Date,
			DateOperation:     tx.DateOperation,
			DateImport:        tx.DateImport,
			Label:             tx.Label,
			OriginalBankLabel: tx.OriginalBankLabel,
			Category:          tx.Category,
			CreatedTS:         now,
		})
	}

	log.Info().
		Int("total", len(transactions)).
		Int("new", len(rows)).
		Int("deduplicated", len(transactions)-len(rows)).
		Msg("Persisting transactions")

	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.bq.DatasetInProject(r.client.projectID, r.client.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("saveTransactions: inserting rows: %w", err)
	}
	return nil
}

func (r *Reconciler) existingVendorIDs(ctx context.Context, vendorIDs []string) (map[string]bool, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT vendor_id
		FROM %s
		WHERE vendor_id IN UNNEST(@vendor_ids)
	`, r.client.table(transactionsTable))

	q := r.client.bq.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "vendor_ids", Value: vendorIDs},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("existingVendorIDs: reading query: %w", err)
	}

	seen := make(map[string]bool)
	for {
		var row struct {
			VendorID string `bigquery:"vendor_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("existingVendorIDs: iterating: %w", err)
		}
		seen[row.VendorID] = true
	}
	return seen, nil
}
