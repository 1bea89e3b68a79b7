package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// AccountRow is a reconciled account record.
type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED, storage identity

	VendorID         string  `bigquery:"vendor_id"` // provider card id
	AccountNumber    string  `bigquery:"account_number"`
	Currency         string  `bigquery:"currency"`
	InstitutionLabel string  `bigquery:"institution_label"`
	Label            string  `bigquery:"label"`
	Balance          float64 `bigquery:"balance"`
	AccountType      string  `bigquery:"account_type"`

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// TransactionRow is a persisted canonical transaction. vendor_id is the
// deduplication key: a vendor_id seen in a previous run is never re-inserted.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	VendorID        string `bigquery:"vendor_id"`
	VendorAccountID string `bigquery:"vendor_account_id"`
	AccountID       string `bigquery:"account_id"` // reconciled account identity

	Amount   float64 `bigquery:"amount"`
	Currency string  `bigquery:"currency"`

	Date          string `bigquery:"date"` // ISO-8601 instants, stored verbatim
	DateOperation string `bigquery:"date_operation"`
	DateImport    string `bigquery:"date_import"`

	Label             string `bigquery:"label"`
	OriginalBankLabel string `bigquery:"original_bank_label"`
	Category          string `bigquery:"category"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// BalanceHistoryRow is the table shape of a balance history document. The
// balances map is stored as a JSON column.
type BalanceHistoryRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED

	Year      int64  `bigquery:"year"`
	AccountID string `bigquery:"account_id"`

	Balances        bigquery.NullJSON `bigquery:"balances"`
	MetadataVersion int64             `bigquery:"metadata_version"`

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}
