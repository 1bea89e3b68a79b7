package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/swile-connector/internal/balancehistory"
	"github.com/dvloznov/swile-connector/internal/classify"
	"github.com/dvloznov/swile-connector/internal/domain"
	"github.com/dvloznov/swile-connector/internal/swile"
)

// mockSource returns a fixed payload or an error.
type mockSource struct {
	payload *swile.Payload
	err     error
}

func (m *mockSource) Fetch(ctx context.Context) (*swile.Payload, error) {
	return m.payload, m.err
}

// mockReconciler records its input and assigns sequential identifiers.
type mockReconciler struct {
	SaveFunc func(ctx context.Context, accounts []domain.Account, txs []domain.Transaction) ([]domain.PersistedAccount, error)

	gotAccounts     []domain.Account
	gotTransactions []domain.Transaction
}

func (m *mockReconciler) Save(ctx context.Context, accounts []domain.Account, txs []domain.Transaction) ([]domain.PersistedAccount, error) {
	m.gotAccounts = accounts
	m.gotTransactions = txs
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, accounts, txs)
	}
	persisted := make([]domain.PersistedAccount, 0, len(accounts))
	for i, acc := range accounts {
		persisted = append(persisted, domain.PersistedAccount{ID: "saved-" + acc.VendorID, Account: accounts[i]})
	}
	return persisted, nil
}

// mockHistoryStore is an in-memory balancehistory.Store.
type mockHistoryStore struct {
	FindFunc func(ctx context.Context, year int, accountID string) (*balancehistory.Document, error)

	upserted []*balancehistory.Document
}

func (m *mockHistoryStore) FindByYearAndAccount(ctx context.Context, year int, accountID string) (*balancehistory.Document, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, year, accountID)
	}
	return nil, nil
}

func (m *mockHistoryStore) UpsertBatch(ctx context.Context, docs []*balancehistory.Document) ([]*balancehistory.Document, error) {
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = "doc-" + doc.AccountID()
		}
	}
	m.upserted = append(m.upserted, docs...)
	return docs, nil
}

func testPayload() *swile.Payload {
	eur := &swile.Currency{ISO3: "EUR"}
	return &swile.Payload{
		Cards: []swile.Card{
			{ID: "card-1", Label: "Meal vouchers", Balance: &swile.Amount{Value: 52.30, Currency: eur}},
		},
		Operations: []swile.Operation{
			{
				ID:   "op1",
				Name: "Coffee",
				Date: "2024-06-01T08:00:00Z",
				Transactions: []swile.SubTransaction{
					{ID: "t1", Type: "ORIGIN", Wallet: &swile.Wallet{UUID: "card-1"}, Amount: &swile.Amount{Value: -350, Currency: eur}},
				},
			},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	reconciler := &mockReconciler{}
	store := &mockHistoryStore{}

	job := &Job{
		Source:     &mockSource{payload: testPayload()},
		Classifier: classify.Passthrough{},
		Reconciler: reconciler,
		Histories:  store,
		Now:        func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	}

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Accounts != 1 || report.Transactions != 1 {
		t.Errorf("report counts = %d accounts / %d transactions, want 1/1", report.Accounts, report.Transactions)
	}
	if len(report.FailedAccounts) != 0 {
		t.Errorf("FailedAccounts = %v, want none", report.FailedAccounts)
	}
	if report.HistoriesSaved != 1 {
		t.Errorf("HistoriesSaved = %d, want 1", report.HistoriesSaved)
	}

	if len(reconciler.gotAccounts) != 1 || reconciler.gotAccounts[0].VendorID != "card-1" {
		t.Errorf("reconciler received accounts %+v", reconciler.gotAccounts)
	}
	if len(reconciler.gotTransactions) != 1 || reconciler.gotTransactions[0].Amount != -3.50 {
		t.Errorf("reconciler received transactions %+v", reconciler.gotTransactions)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("store received %d documents, want 1", len(store.upserted))
	}
	doc := store.upserted[0]
	if doc.AccountID() != "saved-card-1" {
		t.Errorf("document account = %q, want reconciled id saved-card-1", doc.AccountID())
	}
	if doc.Balances["2024-06-01"] != 52.30 {
		t.Errorf("Balances = %v, want 2024-06-01 -> 52.30", doc.Balances)
	}
}

func TestRun_FetchFailureAborts(t *testing.T) {
	job := &Job{
		Source:     &mockSource{err: errors.New("provider down")},
		Classifier: classify.Passthrough{},
		Reconciler: &mockReconciler{},
		Histories:  &mockHistoryStore{},
	}

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected fetch failure to abort the run")
	}
}

func TestRun_ContractViolationAborts(t *testing.T) {
	payload := testPayload()
	payload.Operations[0].Transactions[0].Type = "FEE" // no ORIGIN leg left

	job := &Job{
		Source:     &mockSource{payload: payload},
		Classifier: classify.Passthrough{},
		Reconciler: &mockReconciler{},
		Histories:  &mockHistoryStore{},
	}

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected missing ORIGIN to abort the run")
	}
}

func TestRun_ReconcilerFailureAborts(t *testing.T) {
	reconciler := &mockReconciler{
		SaveFunc: func(ctx context.Context, accounts []domain.Account, txs []domain.Transaction) ([]domain.PersistedAccount, error) {
			return nil, errors.New("validation rejected")
		},
	}
	store := &mockHistoryStore{}

	job := &Job{
		Source:     &mockSource{payload: testPayload()},
		Classifier: classify.Passthrough{},
		Reconciler: reconciler,
		Histories:  store,
	}

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected reconciler failure to abort the run")
	}
	if len(store.upserted) != 0 {
		t.Errorf("store received %d documents after aborted run, want 0", len(store.upserted))
	}
}

func TestRun_DryRunSkipsPersistence(t *testing.T) {
	reconciler := &mockReconciler{}
	store := &mockHistoryStore{}

	job := &Job{
		Source:     &mockSource{payload: testPayload()},
		Classifier: classify.Passthrough{},
		Reconciler: reconciler,
		Histories:  store,
		DryRun:     true,
	}

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Transactions != 1 {
		t.Errorf("report.Transactions = %d, want 1", report.Transactions)
	}
	if reconciler.gotAccounts != nil {
		t.Error("reconciler was called during dry run")
	}
	if len(store.upserted) != 0 {
		t.Error("store was written during dry run")
	}
}

func TestRun_PartialBalanceSyncFailure(t *testing.T) {
	payload := testPayload()
	payload.Cards = append(payload.Cards, swile.Card{
		ID:      "card-2",
		Label:   "Gift card",
		Balance: &swile.Amount{Value: 10, Currency: &swile.Currency{ISO3: "EUR"}},
	})

	store := &mockHistoryStore{
		FindFunc: func(ctx context.Context, year int, accountID string) (*balancehistory.Document, error) {
			if accountID == "saved-card-2" {
				return nil, errors.New("store unavailable")
			}
			return nil, nil
		},
	}

	job := &Job{
		Source:     &mockSource{payload: payload},
		Classifier: classify.Passthrough{},
		Reconciler: &mockReconciler{},
		Histories:  store,
	}

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed despite isolated account failure: %v", err)
	}
	if len(report.FailedAccounts) != 1 || report.FailedAccounts[0] != "saved-card-2" {
		t.Errorf("FailedAccounts = %v, want [saved-card-2]", report.FailedAccounts)
	}
	if report.HistoriesSaved != 1 {
		t.Errorf("HistoriesSaved = %d, want 1", report.HistoriesSaved)
	}
}
