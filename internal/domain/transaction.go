package domain

// Transaction is one normalized operation ready for classification and
// reconciliation. Dates are ISO-8601 instants rendered as strings because the
// persisted schema stores them that way; they are not re-parsed downstream.
type Transaction struct {
	VendorID        string // ORIGIN sub-transaction id, dedup key for reconciliation
	VendorAccountID string // ORIGIN wallet uuid, foreign key to Account.VendorID

	Amount   float64 // major units, sign preserved
	Currency string

	Date          string // operation date
	DateOperation string // same instant as Date, Swile has no separate value date
	DateImport    string // wall-clock time of processing

	Label             string
	OriginalBankLabel string

	// Category is empty until the classifier has run.
	Category string
}
