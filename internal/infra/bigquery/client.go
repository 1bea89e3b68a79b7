// Package bigquery holds the production adapters backing the connector's
// collaborator contracts: the banking reconciler and the balance-history
// document store, both persisted in BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	accountsTable         = "accounts"
	transactionsTable     = "transactions"
	balanceHistoriesTable = "balance_histories"
)

// Client wraps a BigQuery connection with the project and dataset the
// connector's tables live in. It is constructed once in main and passed to
// every adapter; there is no package-level singleton.
type Client struct {
	bq        *bigquery.Client
	projectID string
	datasetID string
}

// NewClient creates a Client for the given project and dataset.
func NewClient(ctx context.Context, projectID, datasetID string) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating bigquery client: %w", err)
	}
	return &Client{bq: bq, projectID: projectID, datasetID: datasetID}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.bq != nil {
		return c.bq.Close()
	}
	return nil
}

func (c *Client) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.projectID, c.datasetID, name)
}

// runDML executes a parameterized DML statement and waits for completion.
func (c *Client) runDML(ctx context.Context, query string, params []bigquery.QueryParameter) error {
	q := c.bq.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("runDML: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("runDML: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("runDML: job error: %w", err)
	}
	return nil
}
