package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
)

func runUsage(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	var (
		ledgerPath = fs.String("ledger", "", "Usage ledger path (default from config)")
		since      = fs.Duration("since", 0, "Only include requests newer than this, e.g. 24h. 0 for all")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *ledgerPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.LedgerPath
	}

	db, store, err := openLedger(path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for close errors at exit

	var from time.Time
	if *since > 0 {
		from = time.Now().Add(-*since)
	}
	summaries, err := store.Summarize(ctx, from)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(stdout, "No usage recorded.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORGANIZATION\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL\tCOST")
	for _, s := range summaries {
		cost := "-"
		if s.Currency != "" {
			cost = fmt.Sprintf("%.6f %s", s.CostTotal, s.Currency)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Organization, s.Model, s.Requests, s.PromptTokens, s.CompletionTokens, s.TotalTokens, cost)
	}
	return w.Flush()
}
