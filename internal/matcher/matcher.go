// Package matcher defines the boundary to the transaction-matching
// capability and its implementations. A matcher proposes groupings of
// transaction IDs; it never commits anything, and its proposals are not
// guaranteed to balance.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fleetbooks/recon/internal/model"
)

var (
	// ErrUnavailable covers transport, process and provider failures.
	ErrUnavailable = errors.New("matcher unavailable")
	// ErrMalformedResponse is returned when the reply does not fit the schema.
	ErrMalformedResponse = errors.New("malformed matcher response")
)

// Request carries both open ledgers. The system side is expected to be
// sign-inverted already.
type Request struct {
	BankTransactions   []model.Transaction
	SystemTransactions []model.Transaction
}

// Matcher proposes candidate groupings. An empty result with a nil error
// means no confident matches.
type Matcher interface {
	Suggest(ctx context.Context, req Request) ([]model.MatchSuggestion, error)
}

// WireTransaction is the transaction shape sent across the boundary.
type WireTransaction struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
}

// WireInput is the matcher input document.
type WireInput struct {
	BankTransactions   []WireTransaction `json:"bankTransactions"`
	SystemTransactions []WireTransaction `json:"systemTransactions"`
}

// ToWire converts a Request into its wire form.
func ToWire(req Request) WireInput {
	return WireInput{
		BankTransactions:   wireTxns(req.BankTransactions),
		SystemTransactions: wireTxns(req.SystemTransactions),
	}
}

func wireTxns(txns []model.Transaction) []WireTransaction {
	out := make([]WireTransaction, len(txns))
	for i, t := range txns {
		out[i] = WireTransaction{
			ID:          t.ID,
			Date:        t.Date.Format("2006-01-02"),
			Description: t.Description,
			Amount:      json.Number(t.Amount.StringFixed(2)),
			Type:        string(t.Type),
		}
	}
	return out
}

// SuggestionSchema is the JSON Schema every matcher reply must satisfy.
const SuggestionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["bankTransactionIds", "systemTransactionIds", "reason"],
    "properties": {
      "bankTransactionIds": {"type": "array", "items": {"type": "string"}},
      "systemTransactionIds": {"type": "array", "items": {"type": "string"}},
      "reason": {"type": "string"}
    }
  }
}`

const schemaURL = "https://fleetbooks.local/schemas/match-suggestions.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(SuggestionSchema)); err != nil {
		return nil, fmt.Errorf("loading suggestion schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling suggestion schema: %w", err)
	}
	return s, nil
})

// DecodeSuggestions validates raw against SuggestionSchema and decodes it.
func DecodeSuggestions(raw []byte) ([]model.MatchSuggestion, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var out []model.MatchSuggestion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out == nil {
		out = []model.MatchSuggestion{}
	}
	return out, nil
}

// Dropped records a suggestion discarded by Validate.
type Dropped struct {
	Index  int
	Reason string
}

// Validate keeps the suggestions whose IDs all exist in the corresponding
// side of req. Repeated IDs inside one suggestion collapse.
func Validate(req Request, suggestions []model.MatchSuggestion) ([]model.MatchSuggestion, []Dropped) {
	bank := idIndex(req.BankTransactions)
	system := idIndex(req.SystemTransactions)

	var kept []model.MatchSuggestion
	var dropped []Dropped
	for i, s := range suggestions {
		if len(s.BankTransactionIDs) == 0 && len(s.SystemTransactionIDs) == 0 {
			dropped = append(dropped, Dropped{Index: i, Reason: "no transaction ids"})
			continue
		}
		if id, ok := firstUnknown(s.BankTransactionIDs, bank); !ok {
			dropped = append(dropped, Dropped{Index: i, Reason: "unknown bank transaction " + id})
			continue
		}
		if id, ok := firstUnknown(s.SystemTransactionIDs, system); !ok {
			dropped = append(dropped, Dropped{Index: i, Reason: "unknown system transaction " + id})
			continue
		}
		kept = append(kept, model.MatchSuggestion{
			BankTransactionIDs:   dedupe(s.BankTransactionIDs),
			SystemTransactionIDs: dedupe(s.SystemTransactionIDs),
			Reason:               s.Reason,
		})
	}
	return kept, dropped
}

func idIndex(txns []model.Transaction) map[string]bool {
	m := make(map[string]bool, len(txns))
	for _, t := range txns {
		m[t.ID] = true
	}
	return m
}

func firstUnknown(ids []string, known map[string]bool) (string, bool) {
	for _, id := range ids {
		if !known[id] {
			return id, false
		}
	}
	return "", true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
