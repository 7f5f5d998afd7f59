// Package main wires the configuration, stores, gateway and pipeline
// into the running bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/bot"
	"pokeball/internal/catcher"
	"pokeball/internal/classifier"
	"pokeball/internal/command"
	"pokeball/internal/config"
	"pokeball/internal/logging"
	"pokeball/internal/market"
	"pokeball/internal/policy"
	"pokeball/internal/session"
	"pokeball/internal/stats"
	"pokeball/internal/storage"
	chstore "pokeball/internal/storage/clickhouse"
	"pokeball/internal/storage/memory"
	"pokeball/internal/storage/migrations"
	pgstore "pokeball/internal/storage/postgres"
	"pokeball/internal/storage/sqlite"
	"pokeball/internal/transport/gateway"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		return err
	}
	log.Info().Str("environment", cfg.Environment).Msg("starting pokeball")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caughtStore, prices, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	pol, index, err := buildPolicy(cfg, log)
	if err != nil {
		return err
	}

	sess := session.New(session.Identity{
		UserID:    cfg.Identity.UserID,
		OwnerID:   cfg.Identity.OwnerID,
		GameBotID: cfg.Identity.GameBotID,
		CloneID:   cfg.Identity.CloneID,
		Prefix:    cfg.Identity.Prefix,
	})
	sess.SetAutocatcher(cfg.Catcher.Enabled)

	gw, err := gateway.New(ctx, gateway.Config{
		GatewayURL: cfg.Gateway.URL,
		APIBaseURL: cfg.Gateway.APIBaseURL,
		Token:      cfg.Gateway.Token,
	}, log)
	if err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	defer gw.Close()

	freezer := session.NewFreezer(sess, log)
	freezer.Notify = func(text string) {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := gw.SendDM(notifyCtx, cfg.Identity.OwnerID, text, nil); err != nil {
			log.Warn().Err(err).Msg("owner notification failed")
		}
	}

	acc := stats.NewAccumulator()
	cls := classifier.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Timeout)
	pipeline := catcher.New(gw, cls, caughtStore, pol, index, sess, freezer, acc, catcher.Config{
		ConfidenceThreshold: cfg.Catcher.ConfidenceThreshold,
		Delay:               time.Duration(cfg.Catcher.Delay * float64(time.Second)),
		TypoRate:            cfg.Catcher.TypoRate,
		HintEnabled:         cfg.Catcher.HintEnabled,
	}, log)

	tasks := session.NewTaskSet(ctx)
	defer tasks.Shutdown()

	marketClient := market.NewClient(gw, sess, cfg.Market.ChannelID, log)
	scheduler := market.NewScheduler(marketClient, sess, tasks, prices, log)

	registry := command.NewRegistry(sess, caughtStore, gw, log)
	handlers := &command.Handlers{
		Policy:          pol,
		Stats:           acc,
		Scheduler:       scheduler,
		Flipper:         market.NewFlipper(marketClient, sess, log),
		DefaultInterval: cfg.Market.DefaultInterval,
		DefaultMarkup:   cfg.Market.DefaultMarkup,
	}
	registry.Register(handlers.Modules()...)

	if cfg.Sleep.Enabled {
		sleeper := session.NewSleepScheduler(sess, tasks, cfg.Sleep.At, cfg.Sleep.Duration, log)
		go func() {
			if err := sleeper.Run(ctx); err != nil {
				log.Error().Err(err).Msg("sleep scheduler stopped")
			}
		}()
	}
	go acc.RunCheckpointer(ctx, 5*time.Minute, sess.Autocatcher, log)

	b := bot.New(sess, pipeline, registry, freezer, bot.Config{
		ChannelWhitelist: cfg.Channels.Whitelist,
		ChannelBlacklist: cfg.Channels.Blacklist,
		GuildWhitelist:   cfg.Channels.GuildWhitelist,
		GuildBlacklist:   cfg.Channels.GuildBlacklist,
	}, log)
	b.Run(ctx, gw.Events())

	log.Info().Msg("shutting down")
	return nil
}

// buildStores selects the caught-record backend and the optional price
// archive from the configuration.
func buildStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.CaughtStore, storage.PriceSampleStore, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var caught storage.CaughtStore
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.NewCaughtStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		caught = store
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		caught = pgstore.NewCaughtStore(pool)
	case "memory":
		caught = memory.NewCaughtStore()
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var prices storage.PriceSampleStore = memory.NewPriceSampleStore()
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		prices = chstore.NewPriceSampleStore(conn)
		log.Info().Msg("price samples archived to clickhouse")
	}

	return caught, prices, closeAll, nil
}

// buildPolicy assembles the decision functions and the name universe
// backing hint resolution.
func buildPolicy(cfg *config.Config, log zerolog.Logger) (*policy.Policy, *policy.NameIndex, error) {
	ranked, err := policy.RankedNames()
	if err != nil {
		return nil, nil, fmt.Errorf("load ranked names: %w", err)
	}

	universe := cfg.Catcher.PriorityNames
	if cfg.Catcher.NamesPath != "" {
		names, err := policy.LoadNames(cfg.Catcher.NamesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load name universe: %w", err)
		}
		universe = append(names, universe...)
	}
	index := policy.NewNameIndex(universe, ranked)

	pol := policy.New(policy.Config{
		PriorityNames:      cfg.Catcher.PriorityNames,
		AvoidNames:         cfg.Catcher.AvoidNames,
		CatchRate:          cfg.Catcher.CatchRate,
		DelayOnPriority:    cfg.Catcher.DelayOnPriority,
		RestrictDuplicates: cfg.Catcher.RestrictDuplicates,
		MaxDuplicates:      cfg.Catcher.MaxDuplicates,
	}, index, log)
	return pol, index, nil
}
