package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moltlabs/moltagent/config"
	"github.com/moltlabs/moltagent/internal/adapters/brain"
	"github.com/moltlabs/moltagent/internal/adapters/notify"
	"github.com/moltlabs/moltagent/internal/adapters/onchain"
	"github.com/moltlabs/moltagent/internal/adapters/social"
	"github.com/moltlabs/moltagent/internal/adapters/storage"
	"github.com/moltlabs/moltagent/internal/application/agent"
	"github.com/moltlabs/moltagent/internal/domain"
	"github.com/moltlabs/moltagent/internal/metrics"
	"github.com/moltlabs/moltagent/internal/ports"
	"github.com/moltlabs/moltagent/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one tick and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print per-channel status table each tick")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("moltagent starting",
		"config", *configPath,
		"interval", cfg.LoopInterval(),
		"trading_enabled", cfg.Trading.Enabled,
		"trading_dry_run", cfg.Trading.DryRun,
		"social_dry_run", cfg.Social.DryRun,
		"once", *once,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	reader, err := onchain.NewReader(cfg.Chain.RPCURL)
	if err != nil {
		slog.Error("failed to connect chain RPC", "err", err)
		os.Exit(1)
	}

	watcher := agent.NewWatcher(reader, cfg.Chain.WalletAddress, cfg.Chain.TokenAddress,
		domain.ActivityThresholds{
			MinEthDeltaWei:   parseBig(cfg.Chain.MinEthDeltaWei),
			MinTokenDeltaRaw: parseBig(cfg.Chain.MinTokenDeltaRaw),
		})

	var executor ports.TradeExecutor
	if cfg.Chain.RouterConfigured() && cfg.Chain.PrivateKey != "" {
		exec, err := onchain.NewExecutor(cfg.Chain.RPCURL, cfg.Chain.PrivateKey,
			cfg.Chain.RouterAddress, cfg.Chain.TokenAddress, cfg.Chain.ChainID, cfg.Trading.SlippageBps)
		if err != nil {
			slog.Error("failed to build trade executor", "err", err)
			os.Exit(1)
		}
		executor = exec
	}

	proposer := buildBrain(cfg)
	posters := buildPosters(cfg, store)

	engine := agent.New(watcher, proposer, executor, posters, store, agent.Config{
		Guardrails: domain.Guardrails{
			TradingEnabled:      cfg.Trading.Enabled,
			KillSwitch:          cfg.Trading.KillSwitch,
			DryRun:              cfg.Trading.DryRun,
			RouterConfigured:    cfg.Chain.RouterConfigured() && executor != nil,
			DailyTradeCap:       cfg.Trading.DailyTradeCap,
			MinIntervalMinutes:  cfg.Trading.MinIntervalMinutes,
			MaxSpendEthPerTrade: cfg.Trading.MaxSpendEthPerTrade,
			SellFractionBps:     cfg.Trading.SellFractionBps,
		},
		PostReceipts: cfg.Agent.PostReceipts,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*table)

	if *once {
		summary, _, err := engine.TryTick(ctx)
		if err != nil {
			slog.Error("tick failed", "err", err)
			os.Exit(1)
		}
		console.Report(summary)
		return
	}

	sched := scheduler.New(engine, console)

	if cfg.Metrics.Enabled {
		go serveHTTP(ctx, cfg.Metrics.Listen, sched)
	}

	if err := sched.Run(ctx, cfg.LoopInterval()); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("moltagent stopped cleanly")
}

// buildBrain wires the LLM proposer when configured, always with the
// heuristic as fallback.
func buildBrain(cfg *config.Config) ports.Brain {
	heuristic := brain.NewHeuristic(domain.ParseEthToWei(cfg.Trading.MaxSpendEthPerTrade))
	if cfg.Brain.Base == "" {
		return heuristic
	}
	return brain.NewLLM(cfg.Brain.Base, cfg.Brain.APIKey, cfg.Brain.Model, heuristic)
}

// buildPosters creates one posting orchestrator per enabled channel.
func buildPosters(cfg *config.Config, store ports.StateStore) []*agent.Poster {
	postCfg := agent.PostingConfig{
		MinInterval:         time.Duration(cfg.Social.MinIntervalMinutes) * time.Minute,
		SimilarityThreshold: cfg.Social.SimilarityThreshold,
		SimilarityLookback:  cfg.Social.SimilarityLookback,
		DryRun:              cfg.Social.DryRun,
	}

	var posters []*agent.Poster
	if cfg.Social.Moltbook.Enabled {
		transport := social.NewMoltbook(cfg.Social.Moltbook.Base, cfg.Social.Moltbook.APIKey, cfg.Social.Moltbook.Submolt)
		posters = append(posters, agent.NewPoster(transport, store, postCfg))
	}
	if cfg.Social.X.Enabled {
		transport := social.NewX(cfg.Social.X.Base, cfg.Social.X.BearerToken)
		posters = append(posters, agent.NewPoster(transport, store, postCfg))
	}
	if len(posters) == 0 {
		slog.Warn("no social channels enabled")
	}
	return posters
}

// serveHTTP exposes /metrics and a manual /tick trigger.
func serveHTTP(ctx context.Context, listen string, sched *scheduler.Scheduler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("POST /tick", func(w http.ResponseWriter, _ *http.Request) {
		sched.Trigger()
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("http endpoint listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http endpoint failed", "err", err)
	}
}

func parseBig(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		slog.Warn("unparsable integer in config, ignoring", "value", s)
		return nil
	}
	return v
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
