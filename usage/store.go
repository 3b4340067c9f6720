// Package usage records priced chat responses in a SQLite ledger.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm"
)

const table = "usage_ledger"

// Entry is one recorded chat response.
type Entry struct {
	Organization     string
	Model            string
	ResponseID       string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostInput        float64
	CostOutput       float64
	CostTotal        float64
	Currency         string
	FinishReason     string
	CreatedAt        time.Time
}

// Summary aggregates entries for one organization, model and currency.
type Summary struct {
	Organization     string
	Model            string
	Currency         string
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostTotal        float64
}

// EntryFromResponse builds a ledger entry for a response produced by the
// adapter for (organization, model). Fields the provider left unset are
// recorded as zero values.
func EntryFromResponse(organization, model string, resp *llm.ChatResponse) Entry {
	e := Entry{
		Organization: organization,
		Model:        model,
		CreatedAt:    time.Now(),
	}
	if resp == nil {
		return e
	}
	if resp.Model != nil {
		e.Model = *resp.Model
	}
	e.ResponseID = lo.FromPtr(resp.ResponseID)
	e.FinishReason = lo.FromPtr(resp.FinishReason)
	if resp.Usage != nil {
		e.PromptTokens = resp.Usage.PromptTokens
		e.CompletionTokens = resp.Usage.CompletionTokens
		e.TotalTokens = resp.Usage.TotalTokens
	}
	e.CostInput = resp.CostInput
	e.CostOutput = resp.CostOutput
	e.CostTotal = resp.CostTotal
	e.Currency = resp.Currency
	return e
}

// Store handles persistence of ledger entries.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store. The schema is expected to be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends an entry to the ledger.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := sq.Insert(table).
		Columns(
			"organization", "model", "response_id",
			"prompt_tokens", "completion_tokens", "total_tokens",
			"cost_input", "cost_output", "cost_total", "currency",
			"finish_reason", "created_at",
		).
		Values(
			e.Organization, e.Model, nullable(e.ResponseID),
			e.PromptTokens, e.CompletionTokens, e.TotalTokens,
			e.CostInput, e.CostOutput, e.CostTotal, e.Currency,
			nullable(e.FinishReason), e.CreatedAt.Unix(),
		)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Summarize aggregates entries created at or after since, grouped by
// organization, model and currency. A zero since covers the whole ledger.
func (s *Store) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	query := sq.Select(
		"organization", "model", "currency",
		"COUNT(*)",
		"COALESCE(SUM(prompt_tokens), 0)",
		"COALESCE(SUM(completion_tokens), 0)",
		"COALESCE(SUM(total_tokens), 0)",
		"COALESCE(SUM(cost_total), 0)",
	).
		From(table).
		GroupBy("organization", "model", "currency").
		OrderBy("organization", "model", "currency")
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since.Unix()})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(
			&sum.Organization, &sum.Model, &sum.Currency,
			&sum.Requests, &sum.PromptTokens, &sum.CompletionTokens, &sum.TotalTokens,
			&sum.CostTotal,
		); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
