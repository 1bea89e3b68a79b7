// Package classify attaches category labels to normalized transactions. The
// label set is opaque to the rest of the connector; the classifier contract
// only promises a same-shape sequence back.
package classify

import (
	"context"

	"github.com/dvloznov/swile-connector/internal/domain"
)

// Classifier labels a batch of transactions. Implementations must return the
// transactions in input order with Category populated; everything else stays
// untouched.
type Classifier interface {
	Classify(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error)
}

// Passthrough returns transactions unchanged. Used in standalone runs where
// no classification backend is configured.
type Passthrough struct{}

// Classify implements the Classifier interface.
func (Passthrough) Classify(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	return txs, nil
}
