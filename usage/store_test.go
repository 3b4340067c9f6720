package usage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/llmadapter/llm"
	"github.com/aschepis/backscratcher/llmadapter/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return NewStore(db)
}

func TestEntryFromResponse(t *testing.T) {
	resp := &llm.ChatResponse{
		Model:        llm.StringPtr("gpt-4o-mini-2024-07-18"),
		ResponseID:   llm.StringPtr("chatcmpl-1"),
		Usage:        llm.NewUsage(10, 4),
		Content:      "hi",
		FinishReason: llm.StringPtr("stop"),
	}
	resp.ApplyPricing(0.5, 2, "USD")

	e := EntryFromResponse("openai", "gpt-4o-mini", resp)
	if e.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("Model = %q, want the reported model", e.Model)
	}
	if e.ResponseID != "chatcmpl-1" || e.FinishReason != "stop" {
		t.Errorf("entry = %+v", e)
	}
	if e.TotalTokens != 14 || e.CostTotal != 13 || e.Currency != "USD" {
		t.Errorf("entry = %+v", e)
	}
}

func TestEntryFromResponseSparse(t *testing.T) {
	e := EntryFromResponse("ollama", "llama3.1", &llm.ChatResponse{Content: "hi"})
	if e.Model != "llama3.1" || e.TotalTokens != 0 || e.ResponseID != "" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRecordAndSummarize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	entries := []Entry{
		{Organization: "openai", Model: "gpt-4o-mini", PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14, CostTotal: 0.5, Currency: "USD"},
		{Organization: "openai", Model: "gpt-4o-mini", PromptTokens: 20, CompletionTokens: 6, TotalTokens: 26, CostTotal: 1.5, Currency: "USD"},
		{Organization: "anthropic", Model: "claude-3-haiku-20240307", PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12, CostTotal: 12, Currency: "USD"},
		{Organization: "openai", Model: "gpt-4o-mini", TotalTokens: 100, CostTotal: 9, Currency: "USD", CreatedAt: old},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	all, err := store.Summarize(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Summarize() = %+v, want 2 groups", all)
	}
	if all[0].Organization != "anthropic" || all[0].Requests != 1 || all[0].CostTotal != 12 {
		t.Errorf("anthropic summary = %+v", all[0])
	}
	if all[1].Requests != 3 || all[1].TotalTokens != 140 || all[1].CostTotal != 11 {
		t.Errorf("openai summary = %+v", all[1])
	}

	recent, err := store.Summarize(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(recent) != 2 || recent[1].Requests != 2 || recent[1].PromptTokens != 30 || recent[1].CostTotal != 2 {
		t.Errorf("recent = %+v", recent)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Summarize(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Summarize() = %+v, want none", got)
	}
}
