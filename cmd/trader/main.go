// Package main runs the auto-trader: per-user strategy scans, position
// monitors and the status API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-autotrader/internal/api"
	"solana-autotrader/internal/config"
	"solana-autotrader/internal/dedup"
	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/engine"
	"solana-autotrader/internal/execution"
	"solana-autotrader/internal/execution/jupiter"
	"solana-autotrader/internal/execution/raydium"
	"solana-autotrader/internal/feed"
	"solana-autotrader/internal/metrics"
	"solana-autotrader/internal/notify"
	"solana-autotrader/internal/solana"
	"solana-autotrader/internal/storage"
	chstore "solana-autotrader/internal/storage/clickhouse"
	"solana-autotrader/internal/storage/memory"
	"solana-autotrader/internal/storage/migrations"
	pgstore "solana-autotrader/internal/storage/postgres"
	redisstore "solana-autotrader/internal/storage/redis"
	"solana-autotrader/internal/wallet"
)

// allStores holds all storage implementations.
type allStores struct {
	users     storage.UserStore
	positions storage.PositionStore
	fills     storage.FillStore
	persister dedup.Persister // nil without Redis
}

func main() {
	// Flags default to environment values, so the env file is loaded first.
	envFile := envFileArg(os.Args[1:])
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(1)
	}

	flag.String("env-file", envFile, "Optional .env file loaded before reading the environment")
	bindFlags(flag.CommandLine, &cfg)
	flag.Parse()

	logger := newLogger(cfg.LogLevel, cfg.LogJSON)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, stores, logger)
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("trader stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func bindFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")
	fs.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (fills); empty keeps fills in memory")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for dedup persistence; empty keeps dedup in memory")
	fs.DurationVar(&cfg.DedupTTL, "dedup-ttl", cfg.DedupTTL, "How long a bought token stays deduplicated")
	fs.Func("sources", "Comma-separated trade sources (jupiter, raydium)", func(v string) error {
		cfg.Sources = splitList(v)
		return nil
	})
	fs.IntVar(&cfg.SlippageBps, "slippage-bps", cfg.SlippageBps, "Swap slippage tolerance in basis points")
	fs.StringVar(&cfg.StreamURL, "price-stream-url", cfg.StreamURL, "WebSocket price stream URL; empty disables it")
	fs.DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "Strategy scan interval")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "Candidate feed refresh interval")
	fs.DurationVar(&cfg.MonitorInterval, "monitor-interval", cfg.MonitorInterval, "Position price poll interval")
	fs.Float64Var(&cfg.FeeReserveSOL, "fee-reserve", cfg.FeeReserveSOL, "SOL kept in the wallet on top of the buy amount")
	fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "Status API listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Emit JSON logs instead of console output")
}

func newLogger(level string, jsonOut bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if jsonOut {
		return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}).
		Level(lvl).With().Timestamp().Logger()
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*allStores, func(), error) {
	if cfg.UseMemory {
		stores := &allStores{
			users:     memory.NewUserStore(),
			positions: memory.NewPositionStore(),
			fills:     memory.NewFillStore(),
		}
		logger.Warn().Msg("using in-memory storage, state is lost on exit")
		return stores, func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	closers = append(closers, pool.Close)
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		users:     pgstore.NewUserStore(pool),
		positions: pgstore.NewPositionStore(pool),
	}

	// ClickHouse
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.fills = chstore.NewFillStore(conn)
	} else {
		logger.Warn().Msg("no clickhouse dsn, fills kept in memory")
		stores.fills = memory.NewFillStore()
	}

	// Redis
	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		stores.persister = redisstore.NewDedupStore(client, cfg.DedupTTL)
	}

	return stores, cleanup, nil
}

// run wires the components and blocks until ctx is done.
func run(ctx context.Context, cfg config.Config, stores *allStores, logger zerolog.Logger) error {
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	router := execution.NewRouter(buildAdapters(cfg, rpc), execution.WithLogger(logger))
	logger.Info().Strs("sources", router.Sources()).Msg("execution router ready")

	upstream := feed.NewDexScreener(
		feed.WithDexBaseURL(cfg.DexScreenerURL),
		feed.WithSearchQueries(cfg.SearchQueries...),
	)

	var stream *feed.Stream
	cacheOpts := []feed.CacheOption{}
	if cfg.StreamURL != "" {
		streamCfg := feed.DefaultStreamConfig()
		streamCfg.URL = cfg.StreamURL
		stream = feed.NewStream(streamCfg, logger)
		cacheOpts = append(cacheOpts, feed.WithLivePrices(stream))
	}
	prices := feed.NewCache(upstream, cacheOpts...)

	dedupOpts := []dedup.Option{dedup.WithLogger(logger)}
	if stores.persister != nil {
		dedupOpts = append(dedupOpts, dedup.WithPersister(stores.persister))
	}
	dedupCfg := dedup.DefaultConfig()
	dedupCfg.TTL = cfg.DedupTTL
	seen := dedup.New(dedupCfg, dedupOpts...)

	notifiers := notify.Multi{notify.NewLog(logger)}
	if cfg.TelegramToken != "" {
		notifiers = append(notifiers, notify.NewTelegram(notify.TelegramConfig{
			BotToken: cfg.TelegramToken,
			BaseURL:  cfg.TelegramURL,
		}, logger))
	}

	opts := engine.Options{
		Feed:            prices,
		Trader:          router,
		Balances:        rpc,
		Dedup:           seen,
		Users:           stores.users,
		Positions:       stores.positions,
		Fills:           stores.fills,
		Notifier:        notifiers,
		Logger:          logger,
		ScanInterval:    cfg.ScanInterval,
		RefreshInterval: cfg.RefreshInterval,
		CleanupInterval: cfg.CleanupInterval,
		MonitorInterval: cfg.MonitorInterval,
		FeeReserveSOL:   cfg.FeeReserveSOL,
		ScanConcurrency: cfg.ScanConcurrency,
	}
	if stream != nil {
		opts.Watcher = stream
	}
	eng := engine.New(opts)
	defer eng.Shutdown()

	if err := loadUsers(ctx, cfg, stores.users, eng, logger); err != nil {
		return err
	}
	if _, err := eng.Resume(ctx); err != nil {
		logger.Error().Err(err).Msg("resume open positions failed")
	}

	summaries := metrics.NewAggregator(stores.positions, stores.fills)
	server := api.NewServer(api.Config{Addr: cfg.APIAddr, ProductionMode: true}, eng, stores.fills, summaries, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	if stream != nil {
		g.Go(func() error { return stream.Run(gctx) })
	}
	return g.Wait()
}

func buildAdapters(cfg config.Config, rpc solana.RPCClient) []execution.Adapter {
	submitter := execution.NewSubmitter(rpc)
	var adapters []execution.Adapter
	for _, name := range cfg.Sources {
		switch name {
		case jupiter.Name:
			adapters = append(adapters, jupiter.New(submitter,
				jupiter.WithBaseURL(cfg.JupiterURL),
				jupiter.WithSlippageBps(cfg.SlippageBps)))
		case raydium.Name:
			adapters = append(adapters, raydium.New(submitter,
				raydium.WithBaseURL(cfg.RaydiumURL),
				raydium.WithSlippageBps(cfg.SlippageBps)))
		}
	}
	return adapters
}

// loadUsers registers every active stored user whose wallet secret is in
// the environment, creating the bootstrap user first when configured.
func loadUsers(ctx context.Context, cfg config.Config, users storage.UserStore, eng *engine.Engine, logger zerolog.Logger) error {
	if cfg.BootstrapUser != "" {
		if err := bootstrapUser(ctx, cfg, users); err != nil {
			return err
		}
	}

	active, err := users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	registered := 0
	for _, u := range active {
		secret := config.UserSecret(os.LookupEnv, u.UserID)
		if secret == "" {
			logger.Warn().Str("user", u.UserID).Str("env", config.SecretEnvPrefix+config.SecretKey(u.UserID)).Msg("no wallet secret, user skipped")
			continue
		}
		kp, err := wallet.FromBase58(secret)
		if err != nil {
			logger.Error().Err(err).Str("user", u.UserID).Msg("invalid wallet secret, user skipped")
			continue
		}
		u.Signer = kp
		if err := eng.AddUser(ctx, *u); err != nil {
			logger.Error().Err(err).Str("user", u.UserID).Msg("register user failed")
			continue
		}
		registered++
	}
	logger.Info().Int("users", registered).Msg("users registered")
	return nil
}

func bootstrapUser(ctx context.Context, cfg config.Config, users storage.UserStore) error {
	_, err := users.GetByID(ctx, cfg.BootstrapUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get bootstrap user: %w", err)
	}

	strategy := domain.StrategyConfig{Enabled: true}
	if cfg.BootstrapStrategy != "" {
		if err := json.Unmarshal([]byte(cfg.BootstrapStrategy), &strategy); err != nil {
			return fmt.Errorf("parse bootstrap strategy: %w", err)
		}
	}
	if err := strategy.Validate(); err != nil {
		return err
	}

	u := &domain.User{
		UserID:    cfg.BootstrapUser,
		Strategy:  strategy,
		Active:    true,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := users.Upsert(ctx, u); err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	return nil
}

// envFileArg finds -env-file in args ahead of flag parsing.
func envFileArg(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "env-file" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ".env"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
