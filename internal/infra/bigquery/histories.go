package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/swile-connector/internal/balancehistory"
	"github.com/dvloznov/swile-connector/internal/logger"
)

// HistoryStore implements balancehistory.Store on BigQuery.
//
// The find/upsert pair is not atomic; overlapping runs for the same account
// race read-then-write, last write wins. A single job instance per account is
// assumed.
type HistoryStore struct {
	client *Client
}

// NewHistoryStore creates a HistoryStore on the given client.
func NewHistoryStore(client *Client) *HistoryStore {
	return &HistoryStore{client: client}
}

// FindByYearAndAccount implements balancehistory.Store. Returns nil when no
// document exists for the key. More than one match violates the uniqueness
// invariant; the newest one wins and the anomaly is logged.
func (s *HistoryStore) FindByYearAndAccount(ctx context.Context, year int, accountID string) (*balancehistory.Document, error) {
	query := fmt.Sprintf(`
		SELECT
			document_id,
			year,
			account_id,
			balances,
			metadata_version,
			created_ts,
			updated_ts
		FROM %s
		WHERE year = @year
		  AND account_id = @account_id
		ORDER BY updated_ts DESC
		LIMIT 2
	`, s.client.table(balanceHistoriesTable))

	q := s.client.bq.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: year},
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindByYearAndAccount: reading query: %w", err)
	}

	var rows []BalanceHistoryRow
	for {
		var row BalanceHistoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FindByYearAndAccount: iterating: %w", err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("year", year).
			Str("account_id", accountID).
			Msg("Multiple balance history documents for one (year, account) key, taking the newest")
	}

	return rowToDocument(&rows[0])
}

// UpsertBatch implements balancehistory.Store. Documents carrying an ID are
// updated in place; the rest are inserted with a fresh identifier. Documents
// persisted before a failure stay persisted; the returned slice holds what
// made it.
func (s *HistoryStore) UpsertBatch(ctx context.Context, docs []*balancehistory.Document) ([]*balancehistory.Document, error) {
	saved := make([]*balancehistory.Document, 0, len(docs))

	for _, doc := range docs {
		if err := s.upsertOne(ctx, doc); err != nil {
			return saved, fmt.Errorf("UpsertBatch: document for year %d account %s: %w", doc.Year, doc.AccountID(), err)
		}
		saved = append(saved, doc)
	}

	return saved, nil
}

func (s *HistoryStore) upsertOne(ctx context.Context, doc *balancehistory.Document) error {
	balances, err := json.Marshal(doc.Balances)
	if err != nil {
		return fmt.Errorf("upsertOne: marshal balances: %w", err)
	}
	now := time.Now()

	if doc.ID == "" {
		doc.ID = uuid.NewString()

		query := fmt.Sprintf(`
			INSERT INTO %s (
				document_id, year, account_id,
				balances, metadata_version,
				created_ts, updated_ts
			)
			VALUES (
				@document_id, @year, @account_id,
				PARSE_JSON(@balances), @metadata_version,
				@now, @now
			)
		`, s.client.table(balanceHistoriesTable))

		return s.client.runDML(ctx, query, []bigquery.QueryParameter{
			{Name: "document_id", Value: doc.ID},
			{Name: "year", Value: doc.Year},
			{Name: "account_id", Value: doc.AccountID()},
			{Name: "balances", Value: string(balances)},
			{Name: "metadata_version", Value: doc.Metadata.Version},
			{Name: "now", Value: now},
		})
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET balances = PARSE_JSON(@balances),
		    metadata_version = @metadata_version,
		    updated_ts = @now
		WHERE document_id = @document_id
	`, s.client.table(balanceHistoriesTable))

	return s.client.runDML(ctx, query, []bigquery.QueryParameter{
		{Name: "balances", Value: string(balances)},
		{Name: "metadata_version", Value: doc.Metadata.Version},
		{Name: "now", Value: now},
		{Name: "document_id", Value: doc.ID},
	})
}

// rowToDocument rebuilds a document from its table shape.
func rowToDocument(row *BalanceHistoryRow) (*balancehistory.Document, error) {
	doc := balancehistory.NewDocument(int(row.Year), row.AccountID)
	doc.ID = row.DocumentID
	doc.Metadata.Version = int(row.MetadataVersion)

	if row.Balances.Valid && row.Balances.JSONVal != "" {
		if err := json.Unmarshal([]byte(row.Balances.JSONVal), &doc.Balances); err != nil {
			return nil, fmt.Errorf("rowToDocument: unmarshal balances of %s: %w", row.DocumentID, err)
		}
	}

	return doc, nil
}
