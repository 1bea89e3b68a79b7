// The migrate binary creates the connector's BigQuery tables. Statements are
// idempotent; re-running against an existing dataset is safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"cloud.google.com/go/bigquery"
)

var (
	projectID = flag.String("project", "", "GCP project ID (required)")
	datasetID = flag.String("dataset", "swile", "BigQuery dataset ID")
)

var tables = []struct {
	name string
	ddl  string
}{
	{
		name: "accounts",
		ddl: `CREATE TABLE IF NOT EXISTS %s.accounts (
			account_id STRING NOT NULL,
			vendor_id STRING,
			account_number STRING,
			currency STRING,
			institution_label STRING,
			label STRING,
			balance FLOAT64,
			account_type STRING,
			created_ts TIMESTAMP,
			updated_ts TIMESTAMP
		)`,
	},
	{
		name: "transactions",
		ddl: `CREATE TABLE IF NOT EXISTS %s.transactions (
			transaction_id STRING NOT NULL,
			vendor_id STRING,
			vendor_account_id STRING,
			account_id STRING,
			amount FLOAT64,
			currency STRING,
			date STRING,
			date_operation STRING,
			date_import STRING,
			label STRING,
			original_bank_label STRING,
			category STRING,
			created_ts TIMESTAMP
		)`,
	},
	{
		name: "balance_histories",
		ddl: `CREATE TABLE IF NOT EXISTS %s.balance_histories (
			document_id STRING NOT NULL,
			year INT64,
			account_id STRING,
			balances JSON,
			metadata_version INT64,
			created_ts TIMESTAMP,
			updated_ts TIMESTAMP
		)`,
	},
}

func main() {
	flag.Parse()

	if *projectID == "" {
		log.Fatal("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create BigQuery client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to BigQuery project: %s, dataset: %s", *projectID, *datasetID)

	schema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS `%s.%s`", *projectID, *datasetID)
	if err := run(ctx, client, schema); err != nil {
		log.Fatalf("Failed to create dataset: %v", err)
	}

	for _, table := range tables {
		log.Printf("  [RUN]  %s", table.name)
		ddl := fmt.Sprintf(table.ddl, fmt.Sprintf("`%s.%s`", *projectID, *datasetID))
		if err := run(ctx, client, ddl); err != nil {
			log.Fatalf("Failed to create table %s: %v", table.name, err)
		}
		log.Printf("  [OK]   %s", table.name)
	}

	log.Println("All tables are up to date.")
}

func run(ctx context.Context, client *bigquery.Client, statement string) error {
	q := client.Query(statement)
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running statement: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
