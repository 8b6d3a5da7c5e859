// Command callbridge runs the telephony audio bridge: it places outbound
// calls through Telnyx, streams call audio into a Gemini Live session, and
// reports transcripts and outcomes back to the orchestrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/timetocall/callbridge/internal/call"
	"github.com/timetocall/callbridge/internal/callback"
	"github.com/timetocall/callbridge/internal/config"
	"github.com/timetocall/callbridge/internal/observe"
	"github.com/timetocall/callbridge/internal/server"
	"github.com/timetocall/callbridge/internal/summary"
	"github.com/timetocall/callbridge/pkg/provider/llm"
	"github.com/timetocall/callbridge/pkg/provider/llm/anyllm"
	oaillm "github.com/timetocall/callbridge/pkg/provider/llm/openai"
	geminilive "github.com/timetocall/callbridge/pkg/provider/s2s/gemini"
	"github.com/timetocall/callbridge/pkg/telnyx"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callbridge: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callbridge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("callbridge starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "callbridge",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Summary provider ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	summaryLLM, err := reg.CreateLLM(cfg.Summary)
	if err != nil {
		slog.Error("failed to create summary provider", "name", cfg.Summary.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Summary.Name, "model", cfg.Summary.Model)

	// ── Carrier and voice providers ───────────────────────────────────────────
	var telnyxOpts []telnyx.Option
	if cfg.Telnyx.BaseURL != "" {
		telnyxOpts = append(telnyxOpts, telnyx.WithBaseURL(cfg.Telnyx.BaseURL))
	}
	carrier := telnyx.New(cfg.Telnyx.APIKey, cfg.Telnyx.ConnectionID, cfg.Telnyx.FromNumber, telnyxOpts...)

	var geminiOpts []geminilive.Option
	if cfg.Gemini.Model != "" {
		geminiOpts = append(geminiOpts, geminilive.WithModel(cfg.Gemini.Model))
	}
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, geminilive.WithBaseURL(cfg.Gemini.BaseURL))
	}
	voice := geminilive.New(cfg.Gemini.APIKey, geminiOpts...)

	// ── Callbacks ─────────────────────────────────────────────────────────────
	var cbOpts []callback.Option
	if cfg.Bridge.CallbackBaseURL != "" {
		cbOpts = append(cbOpts, callback.WithBaseOverride(cfg.Bridge.CallbackBaseURL))
	}
	notifier := callback.New(cfg.Bridge.Secret, cbOpts...)

	// ── Engine and HTTP server ────────────────────────────────────────────────
	engine := call.NewEngine(call.EngineConfig{
		Carrier:         carrier,
		Voice:           voice,
		Notifier:        notifier,
		Summarizer:      summary.New(summaryLLM),
		PublicURL:       cfg.Bridge.PublicURL,
		VoiceName:       cfg.Gemini.Voice,
		ByteOrder:       cfg.Telnyx.ByteOrder,
		NoAnswerTimeout: cfg.Bridge.NoAnswerTimeout,
		MaxCallDuration: cfg.Bridge.MaxCallDuration,
		HangupGrace:     cfg.Bridge.HangupGrace,
	})

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Secret:     cfg.Bridge.Secret,
		Engine:     engine,
		TLS:        cfg.Server.TLS,
	})

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, completing active calls",
		"active_calls", engine.ActiveCalls(),
	)
	engine.Shutdown(shutdownCtx)

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the summary LLM factories into reg. OpenAI
// uses the native SDK; gemini, anthropic, and ollama ride on any-llm-go.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{"gemini", "anthropic"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       callbridge startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Public URL", cfg.Bridge.PublicURL)
	printRow("From number", cfg.Telnyx.FromNumber)
	printRow("Byte order", string(cfg.Telnyx.ByteOrder))
	printRow("Voice model", orDefault(cfg.Gemini.Model, "(provider default)"))
	printRow("Voice", orDefault(cfg.Gemini.Voice, "(provider default)"))
	printRow("Summary LLM", cfg.Summary.Name+" / "+cfg.Summary.Model)
	printRow("Max duration", cfg.Bridge.MaxCallDuration.String())
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	} else {
		printRow("TLS", "(terminated upstream)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
