package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/llmadapter/llm/universal"
)

func runModels(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	org := fs.String("org", "", "Only list models of this organization")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *org != "" && !lo.Contains(universal.Organizations(), *org) {
		return fmt.Errorf("unknown organization %q", *org)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORGANIZATION\tMODEL\tIN/1M\tOUT/1M\tCURRENCY")
	for _, name := range spec.ProviderNames() {
		if *org != "" && name != *org {
			continue
		}
		provider := spec.Providers[name]
		for _, model := range provider.ModelNames() {
			pricing := provider.Models[model].Pricing
			if pricing == nil {
				fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", name, model)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%s\n", name, model,
				pricing.InPerToken*1_000_000, pricing.OutPerToken*1_000_000, pricing.Currency)
		}
	}
	return w.Flush()
}
