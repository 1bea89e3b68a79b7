// Package balancehistory maintains the per-year, per-account daily balance
// snapshot series. One document exists per (year, account); each run merges
// today's observed balance into it.
package balancehistory

import "context"

const (
	// DocType is the document type of balance history documents.
	DocType = "io.cozy.bank.balancehistories"

	// AccountDocType is the document type referenced by the account relationship.
	AccountDocType = "io.cozy.bank.accounts"

	// DayFormat renders the calendar-day keys of the balances map.
	DayFormat = "2006-01-02"
)

// Document is one year of daily balance snapshots for one account.
type Document struct {
	// ID is the storage-assigned identifier; empty until first persisted.
	ID string `json:"_id,omitempty"`

	Year int `json:"year"`

	// Balances maps YYYY-MM-DD day strings to the balance observed as of that
	// day. Repeated observations on the same day overwrite the same key.
	Balances map[string]float64 `json:"balances"`

	Metadata      Metadata      `json:"metadata"`
	Relationships Relationships `json:"relationships"`
}

// Metadata carries the document schema version.
type Metadata struct {
	Version int `json:"version"`
}

// Relationships links the document to its account.
type Relationships struct {
	Account AccountRelationship `json:"account"`
}

// AccountRelationship wraps the account reference.
type AccountRelationship struct {
	Data AccountRef `json:"data"`
}

// AccountRef points at the owning account document.
type AccountRef struct {
	ID   string `json:"_id"`
	Type string `json:"_type"`
}

// NewDocument returns an empty balance history for the given year and account.
func NewDocument(year int, accountID string) *Document {
	return &Document{
		Year:     year,
		Balances: map[string]float64{},
		Metadata: Metadata{Version: 1},
		Relationships: Relationships{
			Account: AccountRelationship{
				Data: AccountRef{
					ID:   accountID,
					Type: AccountDocType,
				},
			},
		},
	}
}

// AccountID returns the account the document belongs to.
func (d *Document) AccountID() string {
	return d.Relationships.Account.Data.ID
}

// Store is the document-store collaborator contract. Implementations must
// tolerate the uniqueness invariant: at most one document per (year, account).
type Store interface {
	// FindByYearAndAccount returns the existing document for the key, or nil
	// if none has been created yet.
	FindByYearAndAccount(ctx context.Context, year int, accountID string) (*Document, error)

	// UpsertBatch persists the documents, matching existing ones by ID and
	// creating (and assigning IDs to) those without one. Partial success is
	// reported through the returned error; documents persisted before the
	// failure stay persisted.
	UpsertBatch(ctx context.Context, docs []*Document) ([]*Document, error)
}
