// Command dataprep builds a training dataset from exported chat transcripts.
//
//	dataprep generate [-direct] [-file path] [-skip-duplicates]
//	dataprep clean -in path [-out path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/doppel/internal/anthropic"
	"github.com/MikeSquared-Agency/doppel/internal/batch"
	"github.com/MikeSquared-Agency/doppel/internal/clock"
	"github.com/MikeSquared-Agency/doppel/internal/config"
	"github.com/MikeSquared-Agency/doppel/internal/dataset"
	"github.com/MikeSquared-Agency/doppel/internal/gemini"
	"github.com/MikeSquared-Agency/doppel/internal/hermes"
	"github.com/MikeSquared-Agency/doppel/internal/logging"
	"github.com/MikeSquared-Agency/doppel/internal/openaicompat"
	"github.com/MikeSquared-Agency/doppel/internal/ratelimit"
	"github.com/MikeSquared-Agency/doppel/internal/slack"
	"github.com/MikeSquared-Agency/doppel/internal/store"
	"github.com/MikeSquared-Agency/doppel/internal/transcript"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "generate":
		code = runGenerate(ctx, cfg, os.Args[2:])
	case "clean":
		code = runClean(cfg, os.Args[2:])
	default:
		usage()
		code = 2
	}
	if code != 0 {
		stop()
		closer.Close()
		os.Exit(code)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dataprep <generate|clean> [flags]")
}

func runGenerate(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	direct := fs.Bool("direct", false, "derive roles locally without calling the model")
	file := fs.String("file", "", "process a single transcript file")
	input := fs.String("input", cfg.RawChatsDir, "directory of exported transcripts")
	output := fs.String("output", cfg.OutputPath, "dataset output path")
	skipDup := fs.Bool("skip-duplicates", false, "skip exports that overlap an earlier file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := cfg.ValidateBatch(*direct); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	clk := clock.Real{}
	logger := slog.Default()
	parser := transcript.NewParser(clk, logger)

	var completer batch.Completer
	var limiter batch.Limiter
	if !*direct {
		switch cfg.LLMProvider {
		case config.ProviderAnthropic:
			completer = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
			slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
		case config.ProviderOpenAI:
			completer = openaicompat.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
			slog.Info("openai-compatible client ready", "model", cfg.OpenAIModel)
		default:
			gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.DataprepModel)
			if err != nil {
				slog.Error("failed to create gemini client", "error", err)
				return 1
			}
			completer = gc
			slog.Info("gemini client ready", "model", cfg.DataprepModel)
		}
		limiter = ratelimit.New(cfg.MaxRPM, cfg.MaxRPD, clk, logger)
	}

	runner := batch.NewRunner(batch.Config{
		InputDir:       *input,
		SingleFile:     *file,
		OutputPath:     *output,
		SelfName:       cfg.YourName,
		SessionGap:     cfg.SessionGap,
		Direct:         *direct,
		SkipDuplicates: *skipDup,
	}, parser, completer, limiter, clk, logger)

	// Database (optional)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			return 1
		}
		runner.WithArchiver(db)
		slog.Info("database connected")
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		h, err := hermes.NewClient(connectCtx, cfg.NatsURL, cfg.NatsToken, logger)
		cancel()
		if err != nil {
			slog.Warn("nats unavailable, running without events", "error", err)
		} else {
			defer h.Close()
			runner.WithEvents(h)
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	// Slack (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		runner.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger))
	}

	report, err := runner.Run(ctx)
	if report != nil && !errors.Is(err, batch.ErrNoInput) {
		report.WriteSummary(os.Stdout)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		slog.Warn("generation interrupted")
		return 130
	default:
		slog.Error("generation failed", "error", err)
		return 1
	}
}

func runClean(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	in := fs.String("in", cfg.OutputPath, "dataset to clean")
	out := fs.String("out", "", "cleaned output path (default <in>_cleaned.jsonl)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, ".jsonl") + "_cleaned.jsonl"
	}

	stats, err := dataset.CleanFile(*in, *out, slog.Default())
	if err != nil {
		slog.Error("clean failed", "error", err)
		return 1
	}

	fmt.Printf("\n=== Cleaning Summary ===\n")
	fmt.Printf("Lines read: %d\n", stats.Lines)
	fmt.Printf("Kept: %d\n", stats.Kept)
	fmt.Printf("Removed: %d (unparseable %d, invalid %d, single role %d)\n",
		stats.Removed(), stats.Unparseable, stats.Invalid, stats.SingleRole)
	fmt.Printf("Output: %s\n", *out)
	return 0
}
