package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/llmadapter/llm"
	"github.com/aschepis/backscratcher/llmadapter/llm/universal"
	llmlogger "github.com/aschepis/backscratcher/llmadapter/logger"
	"github.com/aschepis/backscratcher/llmadapter/retry"
	"github.com/aschepis/backscratcher/llmadapter/usage"
)

// ledgerOff disables ledger recording for one invocation.
const ledgerOff = "off"

func runChat(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	var (
		org         = fs.String("org", "", "Organization: openai, anthropic, google or ollama (default from config)")
		model       = fs.String("model", "", "Model name (default from config)")
		system      = fs.String("system", "", "System prompt")
		prompt      = fs.String("prompt", "", "User prompt. If not set, read from stdin")
		maxTokens   = fs.Int("max-tokens", llm.DefaultMaxTokens, "Maximum tokens to generate, 0 for the provider default")
		temperature = fs.Float64("temperature", llm.DefaultTemperature, "Sampling temperature, 0 to 2")
		topP        = fs.Float64("top-p", llm.DefaultTopP, "Nucleus sampling mass, 0 to 1")
		retries     = fs.Uint64("retries", 0, "Retries for rate limit, server and timeout errors")
		ledgerPath  = fs.String("ledger", "", `Usage ledger path (default from config, "off" to disable)`)
	)
	logFile, pretty := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	logger, err := llmlogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	organization := *org
	if organization == "" {
		organization = cfg.DefaultOrganization
	}
	modelName := *model
	if modelName == "" {
		modelName = cfg.ModelFor(organization)
	}

	text := *prompt
	if text == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("prompt is required")
	}

	messages := []llm.Message{}
	if *system != "" {
		messages = append(messages, llm.Prompt(*system))
	}
	messages = append(messages, llm.UserMessage(text))

	adapter, err := universal.New(organization, modelName, cfg.APIKeyFor(organization),
		llm.WithLogger(logger),
		llm.WithRegistry(spec),
		llm.WithBaseURL(cfg.BaseURLFor(organization)),
		llm.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
	)
	if err != nil {
		return err
	}

	handler := retry.NewHandler(logger, *retries)
	resp, err := handler.Generate(ctx, adapter, messages,
		llm.WithMaxTokens(*maxTokens),
		llm.WithTemperature(*temperature),
		llm.WithTopP(*topP),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, resp.Content)
	fmt.Fprintln(stdout, formatUsage(resp))

	path := *ledgerPath
	if path == "" {
		path = cfg.LedgerPath
	}
	if path == "" || path == ledgerOff {
		return nil
	}
	db, store, err := openLedger(path, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Usage ledger unavailable, response not recorded")
		return nil
	}
	defer db.Close() //nolint:errcheck // No remedy for close errors at exit

	if err := store.Record(ctx, usage.EntryFromResponse(organization, modelName, resp)); err != nil {
		logger.Warn().Err(err).Msg("Failed to record usage")
	}
	return nil
}

func formatUsage(resp *llm.ChatResponse) string {
	var prompt, completion, total int64
	if resp.Usage != nil {
		prompt, completion, total = resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens
	}
	line := fmt.Sprintf("[tokens: %d prompt + %d completion = %d", prompt, completion, total)
	if resp.Currency != "" {
		line += fmt.Sprintf(", cost: %.6f %s", resp.CostTotal, resp.Currency)
	}
	return line + "]"
}
