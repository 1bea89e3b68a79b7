// Package swile holds the raw Swile payload shapes and the Source contract
// that delivers them. Authentication and the HTTP session against the Swile
// API are the caller's concern; this package only understands the payload.
package swile

// SubTransactionOrigin tags the authoritative component of a multi-part
// operation. Every operation must carry exactly one.
const SubTransactionOrigin = "ORIGIN"

// Card is a raw Swile card payload.
type Card struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Balance *Amount `json:"balance"`
}

// Amount is a raw monetary value. Operations report values in minor units
// (cents); card balances are already in major units.
type Amount struct {
	Value    float64   `json:"value"`
	Currency *Currency `json:"currency"`
}

// Currency wraps the 3-letter ISO code the way the provider nests it.
type Currency struct {
	ISO3 string `json:"iso_3"`
}

// Operation is a raw Swile operation. A single operation may bundle several
// sub-transactions (origin plus fee or split legs).
type Operation struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Date         string           `json:"date"`
	Transactions []SubTransaction `json:"transactions"`
}

// SubTransaction is one leg of an operation.
type SubTransaction struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Wallet *Wallet `json:"wallet"`
	Amount *Amount `json:"amount"`
}

// Wallet links a sub-transaction to the card it belongs to.
type Wallet struct {
	UUID string `json:"uuid"`
}

// Payload bundles everything one fetch returns.
type Payload struct {
	Cards      []Card      `json:"cards"`
	Operations []Operation `json:"operations"`
}
