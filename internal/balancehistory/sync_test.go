package balancehistory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/swile-connector/internal/domain"
)

// mockStore is an in-memory Store keyed by (year, accountID).
type mockStore struct {
	mu   sync.Mutex
	docs map[string]*Document

	findErr map[string]error // accountID -> error to return from find
}

func newMockStore() *mockStore {
	return &mockStore{docs: map[string]*Document{}}
}

func key(year int, accountID string) string {
	return fmt.Sprintf("%d/%s", year, accountID)
}

func (m *mockStore) FindByYearAndAccount(ctx context.Context, year int, accountID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.findErr[accountID]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[key(year, accountID)]
	if !ok {
		return nil, nil
	}
	// Hand back a copy so tests observe what the synchronizer returns, not
	// shared state.
	cp := *doc
	cp.Balances = map[string]float64{}
	for k, v := range doc.Balances {
		cp.Balances[k] = v
	}
	return &cp, nil
}

func (m *mockStore) UpsertBatch(ctx context.Context, docs []*Document) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("generated-%d-%s", doc.Year, doc.AccountID())
		}
		m.docs[key(doc.Year, doc.AccountID())] = doc
	}
	return docs, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func account(id string, balance float64) domain.PersistedAccount {
	return domain.PersistedAccount{
		ID: id,
		Account: domain.Account{
			VendorID: id,
			Balance:  balance,
		},
	}
}

func TestSyncAll_CreatesFreshDocument(t *testing.T) {
	store := newMockStore()
	s := NewSynchronizer(store)
	s.Now = fixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	results := s.SyncAll(context.Background(), []domain.PersistedAccount{account("A1", 1234.56)})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("sync failed: %v", res.Err)
	}

	doc := res.Document
	if doc.Year != 2024 {
		t.Errorf("Year = %d, want 2024", doc.Year)
	}
	if doc.Metadata.Version != 1 {
		t.Errorf("Metadata.Version = %d, want 1", doc.Metadata.Version)
	}
	if doc.Relationships.Account.Data.ID != "A1" {
		t.Errorf("account relationship = %q, want A1", doc.Relationships.Account.Data.ID)
	}
	if doc.Relationships.Account.Data.Type != "io.cozy.bank.accounts" {
		t.Errorf("account relationship type = %q, want io.cozy.bank.accounts", doc.Relationships.Account.Data.Type)
	}
	if len(doc.Balances) != 1 || doc.Balances["2024-06-01"] != 1234.56 {
		t.Errorf("Balances = %v, want single entry 2024-06-01 -> 1234.56", doc.Balances)
	}
}

func TestSyncAll_SameDayRunsAreIdempotent(t *testing.T) {
	store := newMockStore()
	s := NewSynchronizer(store)
	s.Now = fixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	accounts := []domain.PersistedAccount{account("A1", 100.0)}

	first := s.SyncAll(context.Background(), accounts)
	if _, err := store.UpsertBatch(context.Background(), Documents(first)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Second run later the same day with an updated balance.
	s.Now = fixedClock(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC))
	second := s.SyncAll(context.Background(), []domain.PersistedAccount{account("A1", 80.0)})
	if second[0].Err != nil {
		t.Fatalf("second sync failed: %v", second[0].Err)
	}

	doc := second[0].Document
	if len(doc.Balances) != 1 {
		t.Fatalf("Balances has %d entries, want exactly 1 for the day", len(doc.Balances))
	}
	if doc.Balances["2024-06-01"] != 80.0 {
		t.Errorf("Balances[2024-06-01] = %v, want 80.0 (latest run wins)", doc.Balances["2024-06-01"])
	}
	if doc.ID == "" {
		t.Error("expected second run to reuse the persisted document identity")
	}
}

func TestSyncAll_YearsPartitionIntoSeparateDocuments(t *testing.T) {
	store := newMockStore()
	s := NewSynchronizer(store)

	s.Now = fixedClock(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC))
	dec := s.SyncAll(context.Background(), []domain.PersistedAccount{account("A1", 50.0)})
	if _, err := store.UpsertBatch(context.Background(), Documents(dec)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	s.Now = fixedClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	jan := s.SyncAll(context.Background(), []domain.PersistedAccount{account("A1", 60.0)})
	if _, err := store.UpsertBatch(context.Background(), Documents(jan)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	docOld := dec[0].Document
	docNew := jan[0].Document
	if docOld.Year != 2023 || docNew.Year != 2024 {
		t.Fatalf("years = %d/%d, want 2023/2024", docOld.Year, docNew.Year)
	}
	if len(docOld.Balances) != 1 || docOld.Balances["2023-12-31"] != 50.0 {
		t.Errorf("2023 document Balances = %v, want only 2023-12-31 entry", docOld.Balances)
	}
	if len(docNew.Balances) != 1 || docNew.Balances["2024-01-01"] != 60.0 {
		t.Errorf("2024 document Balances = %v, want only 2024-01-01 entry", docNew.Balances)
	}
	if docNew.ID == docOld.ID {
		t.Error("expected distinct documents per year")
	}
}

func TestSyncAll_PreservesPriorEntries(t *testing.T) {
	store := newMockStore()
	existing := NewDocument(2024, "A1")
	existing.ID = "doc-1"
	existing.Balances["2024-05-30"] = 10.0
	existing.Balances["2024-05-31"] = 20.0
	store.docs[key(2024, "A1")] = existing

	s := NewSynchronizer(store)
	s.Now = fixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	results := s.SyncAll(context.Background(), []domain.PersistedAccount{account("A1", 30.0)})
	doc := results[0].Document
	if doc.ID != "doc-1" {
		t.Errorf("ID = %q, want doc-1 (existing identity preserved)", doc.ID)
	}

	want := map[string]float64{
		"2024-05-30": 10.0,
		"2024-05-31": 20.0,
		"2024-06-01": 30.0,
	}
	if len(doc.Balances) != len(want) {
		t.Fatalf("Balances = %v, want %v", doc.Balances, want)
	}
	for day, balance := range want {
		if doc.Balances[day] != balance {
			t.Errorf("Balances[%s] = %v, want %v", day, doc.Balances[day], balance)
		}
	}
}

func TestSyncAll_IsolatesPerAccountFailures(t *testing.T) {
	store := newMockStore()
	store.findErr = map[string]error{"A2": errors.New("store unavailable")}

	s := NewSynchronizer(store)
	s.Now = fixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	accounts := []domain.PersistedAccount{
		account("A1", 10.0),
		account("A2", 20.0),
		account("A3", 30.0),
	}
	results := s.SyncAll(context.Background(), accounts)

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy accounts failed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("expected A2 to report its store error")
	}

	docs := Documents(results)
	if len(docs) != 2 {
		t.Errorf("Documents() returned %d, want 2", len(docs))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0] != "A2" {
		t.Errorf("Failed() = %v, want [A2]", failed)
	}
}

func TestSyncAll_ManyAccountsConcurrently(t *testing.T) {
	store := newMockStore()
	s := NewSynchronizer(store)
	s.Now = fixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	var accounts []domain.PersistedAccount
	for i := 0; i < 64; i++ {
		accounts = append(accounts, account(string(rune('a'+i%26))+"-acct", float64(i)))
	}

	results := s.SyncAll(context.Background(), accounts)
	if len(results) != len(accounts) {
		t.Fatalf("got %d results, want %d", len(results), len(accounts))
	}
	for i, res := range results {
		if res.AccountID != accounts[i].ID {
			t.Fatalf("results[%d] is for %q, want %q (input order)", i, res.AccountID, accounts[i].ID)
		}
	}
}
