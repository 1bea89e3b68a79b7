// Package normalize converts raw Swile payloads into the canonical account and
// transaction shapes consumed by classification and reconciliation. All
// functions are pure apart from the clock injected by the caller.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dvloznov/swile-connector/internal/domain"
	"github.com/dvloznov/swile-connector/internal/swile"
)

const (
	// InstitutionLabel is the fixed institution name for Swile accounts.
	InstitutionLabel = "Swile"

	// AccountType is the single account category Swile cards map to.
	AccountType = "Checkings"

	// ISOInstant renders a UTC time as an ISO-8601 instant with millisecond
	// precision, matching the persisted transaction schema.
	ISOInstant = "2006-01-02T15:04:05.000Z07:00"
)

// Data-contract violations. A raw record missing one of these fields breaks
// the provider contract; the whole batch fails rather than silently dropping
// or mangling records.
var (
	ErrMissingBalance      = errors.New("card has no balance")
	ErrMissingCurrency     = errors.New("missing currency")
	ErrNoOriginTransaction = errors.New("operation has no ORIGIN sub-transaction")
	ErrMissingWallet       = errors.New("ORIGIN sub-transaction has no wallet")
	ErrMissingAmount       = errors.New("ORIGIN sub-transaction has no amount")
	ErrInvalidAmount       = errors.New("amount is not a finite number")
)

// Accounts maps each raw card 1:1 to a canonical account. No deduplication:
// multiple cards always yield multiple accounts.
func Accounts(cards []swile.Card) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(cards))

	for _, card := range cards {
		if card.Balance == nil {
			return nil, fmt.Errorf("Accounts: card %q: %w", card.ID, ErrMissingBalance)
		}
		if card.Balance.Currency == nil || card.Balance.Currency.ISO3 == "" {
			return nil, fmt.Errorf("Accounts: card %q: %w", card.ID, ErrMissingCurrency)
		}

		accounts = append(accounts, domain.Account{
			VendorID:         card.ID,
			Number:           card.ID,
			Currency:         card.Balance.Currency.ISO3,
			InstitutionLabel: InstitutionLabel,
			Label:            card.Label,
			Balance:          card.Balance.Value,
			Type:             AccountType,
		})
	}

	return accounts, nil
}

// Transactions maps each raw operation to a canonical transaction, taking the
// ORIGIN sub-transaction as authoritative for amount, currency and wallet
// linkage. Output order mirrors input order. now is the processing instant
// recorded as DateImport.
func Transactions(ops []swile.Operation, now time.Time) ([]domain.Transaction, error) {
	dateImport := now.UTC().Format(ISOInstant)
	transactions := make([]domain.Transaction, 0, len(ops))

	for _, op := range ops {
		origin, err := Origin(op)
		if err != nil {
			return nil, fmt.Errorf("Transactions: %w", err)
		}

		amount := origin.Amount.Value / 100 // provider reports minor units
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			return nil, fmt.Errorf("Transactions: operation %q: %w", op.ID, ErrInvalidAmount)
		}

		parsed, err := parseOperationDate(op.Date)
		if err != nil {
			return nil, fmt.Errorf("Transactions: operation %q: invalid date %q: %w", op.ID, op.Date, err)
		}
		date := parsed.UTC().Format(ISOInstant)

		transactions = append(transactions, domain.Transaction{
			VendorID:          origin.ID,
			VendorAccountID:   origin.Wallet.UUID,
			Amount:            amount,
			Currency:          origin.Amount.Currency.ISO3,
			Date:              date,
			DateOperation:     date,
			DateImport:        dateImport,
			Label:             op.Name,
			OriginalBankLabel: op.Name,
		})
	}

	return transactions, nil
}

// Origin returns the first ORIGIN sub-transaction of the operation, fully
// validated. Absence of an ORIGIN leg is a data-contract violation.
func Origin(op swile.Operation) (*swile.SubTransaction, error) {
	for i := range op.Transactions {
		sub := &op.Transactions[i]
		if sub.Type != swile.SubTransactionOrigin {
			continue
		}
		if sub.Wallet == nil || sub.Wallet.UUID == "" {
			return nil, fmt.Errorf("operation %q: %w", op.ID, ErrMissingWallet)
		}
		if sub.Amount == nil {
			return nil, fmt.Errorf("operation %q: %w", op.ID, ErrMissingAmount)
		}
		if sub.Amount.Currency == nil || sub.Amount.Currency.ISO3 == "" {
			return nil, fmt.Errorf("operation %q: %w", op.ID, ErrMissingCurrency)
		}
		return sub, nil
	}
	return nil, fmt.Errorf("operation %q: %w", op.ID, ErrNoOriginTransaction)
}

// parseOperationDate accepts the timestamp formats Swile has been observed to
// send: a full RFC 3339 instant or a bare calendar date.
func parseOperationDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
