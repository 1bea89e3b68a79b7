package domain

// Account is the provider-independent account shape handed to the banking
// reconciler. It is rebuilt from the raw provider payload on every run; stable
// identity is assigned by reconciliation, not here.
type Account struct {
	VendorID         string // provider card id
	Number           string // aliased to VendorID, Swile has no separate account number
	Currency         string // 3-letter ISO code, verbatim from the provider
	InstitutionLabel string
	Label            string
	Balance          float64 // raw provider value, no scaling
	Type             string
}

// PersistedAccount is an Account after reconciliation, carrying the
// storage-assigned identifier and the authoritative post-save balance.
type PersistedAccount struct {
	ID string
	Account
}
