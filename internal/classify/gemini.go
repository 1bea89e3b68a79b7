package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/swile-connector/internal/domain"
)

// DefaultModelName is the Gemini model used for classification.
const DefaultModelName = "gemini-2.5-flash"

// DefaultCategories is the label set offered to the model when the caller
// does not supply one.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Shopping",
	"Health",
	"Gifts",
	"Uncategorized",
}

// Gemini classifies transactions with a Gemini model. It sends the batch of
// transaction labels in one request and expects a strict JSON array of
// category strings back, one per transaction.
type Gemini struct {
	client     *genai.Client
	model      string
	categories []string
}

// NewGemini creates a Gemini classifier. model and categories fall back to
// the package defaults when empty.
func NewGemini(client *genai.Client, model string, categories []string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Gemini{client: client, model: model, categories: categories}
}

// Classify implements the Classifier interface.
func (g *Gemini) Classify(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	if len(txs) == 0 {
		return txs, nil
	}

	prompt := buildPrompt(txs, g.categories)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Gemini.Classify: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Gemini.Classify: empty response from model")
	}

	labels, err := parseLabels(rawText, len(txs))
	if err != nil {
		return nil, fmt.Errorf("Gemini.Classify: %w", err)
	}

	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	for i := range out {
		out[i].Category = labels[i]
	}
	return out, nil
}

// buildPrompt lists the allowed categories and the transaction labels,
// constraining the model to strict JSON output.
func buildPrompt(txs []domain.Transaction, categories []string) string {
	var b strings.Builder
	b.WriteString("You are a transaction classifier for a French meal-voucher provider.\n\n")
	b.WriteString("Use ONLY the following categories:\n")
	for _, cat := range categories {
		b.WriteString("  - " + cat + "\n")
	}
	b.WriteString("\nClassify each transaction below into exactly one category.\n")
	b.WriteString("Output STRICT JSON only: a JSON array of category strings, one per\n")
	b.WriteString("transaction, in the same order. No comments, no Markdown, no code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	b.WriteString("If unsure, use \"Uncategorized\".\n\nTransactions:\n")
	for i, tx := range txs {
		fmt.Fprintf(&b, "%d. %s (%.2f %s)\n", i+1, tx.Label, tx.Amount, tx.Currency)
	}
	return b.String()
}

// parseLabels decodes the model response into exactly want labels.
func parseLabels(raw string, want int) ([]string, error) {
	clean := cleanModelJSON(raw)

	var labels []string
	if err := json.Unmarshal([]byte(clean), &labels); err != nil {
		return nil, fmt.Errorf("parseLabels: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if len(labels) != want {
		return nil, fmt.Errorf("parseLabels: got %d labels for %d transactions", len(labels), want)
	}
	return labels, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// If there's still junk around the JSON array, keep only from the first
	// '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
