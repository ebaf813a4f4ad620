package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/applog"
	"github.com/DachengChen/shelfcare/config"
	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/nl2sql"
	"github.com/DachengChen/shelfcare/store"
	"github.com/rs/zerolog"
)

const connectTimeout = 15 * time.Second

// appDeps is everything a command needs, wired from config.
type appDeps struct {
	cfg      *config.AppConfig
	logger   zerolog.Logger
	db       *db.DB
	store    *store.Store // nil when disabled
	provider ai.Provider
	selector *nl2sql.VectorSelector
	chain    *nl2sql.Chain
	agent    *agent.Agent
}

type bootOptions struct {
	human   agent.HumanInput
	console bool
	// deferIndex leaves building the example index to the caller.
	deferIndex bool
}

// loadConfig reads config and applies the persistent flags.
func loadConfig(opts *rootOptions) (*config.AppConfig, error) {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return nil, err
	}
	if opts.conn != "" {
		conns, err := config.NewConnectionStore(cfg.Dir())
		if err != nil {
			return nil, fmt.Errorf("load connections: %w", err)
		}
		if err := conns.Apply(cfg, opts.conn); err != nil {
			return nil, err
		}
	}
	if opts.provider != "" {
		cfg.AI.Provider = opts.provider
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func setupLogging(cfg *config.AppConfig, console bool) (zerolog.Logger, error) {
	return applog.Setup(applog.Options{
		Dir:     filepath.Join(cfg.Dir(), "logs"),
		Level:   cfg.LogLevel,
		Console: console,
	})
}

func openStore(cfg *config.AppConfig) (*store.Store, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath(cfg.Dir())
	}
	return store.Open(path)
}

// newSelector builds the example selector. st may be nil.
func newSelector(cfg *config.AppConfig, st *store.Store, logger zerolog.Logger) (*nl2sql.VectorSelector, error) {
	corpus, err := nl2sql.LoadCorpus(cfg.AI.ExamplesPath)
	if err != nil {
		return nil, err
	}
	embedder, err := ai.NewEmbedder(cfg.AI.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	var cache nl2sql.VectorCache
	if st != nil {
		cache = st
	}
	return nl2sql.NewVectorSelector(corpus, embedder, cache, logger), nil
}

// bootstrap connects to the database and wires the chain and the agent.
func bootstrap(ctx context.Context, opts *rootOptions, boot bootOptions) (*appDeps, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := setupLogging(cfg, boot.console)
	if err != nil {
		return nil, err
	}
	applog.Event("app", "starting (provider=%s, database=%s)", cfg.AI.Provider, cfg.DB.Database)

	d := &appDeps{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	d.db, err = db.Connect(connectCtx, cfg.DB, logger)
	if err != nil {
		return nil, err
	}

	d.store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	d.provider = ai.WithTimeout(ai.WithLogging(provider, applog.Component("ai")), timeout)

	d.selector, err = newSelector(cfg, d.store, logger)
	if err != nil {
		return nil, err
	}
	if !boot.deferIndex {
		// Select retries indexing on demand.
		if err := d.selector.Index(ctx); err != nil {
			logger.Warn().Err(err).Msg("example index not built")
		}
	}

	d.chain = nl2sql.NewChain(d.selector, d.provider, d.db, d.db, nl2sql.Options{
		TopK:             cfg.AI.TopK,
		RephraseFallback: cfg.AI.RephraseFallback,
		ExtraDenylist:    cfg.AI.ExtraDenylist,
	}, logger)

	early, err := agent.ParseEarlyStopping(cfg.AI.EarlyStopping)
	if err != nil {
		return nil, err
	}
	tools, err := agent.NewRegistry(agent.DefaultTools(agent.ToolDeps{
		Chain:     d.chain,
		Inventory: d.db,
		Human:     boot.human,
	})...)
	if err != nil {
		return nil, err
	}
	d.agent = agent.New(d.provider, tools, agent.Options{
		MaxIterations: cfg.AI.MaxIterations,
		StallLimit:    cfg.AI.StallLimit,
		EarlyStopping: early,
	}, logger)
	if d.store != nil {
		d.agent.WithRunLog(d.store)
	}

	ok = true
	return d, nil
}

// Close releases the database, the store and the log file.
func (d *appDeps) Close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("close store")
		}
	}
	applog.Event("app", "stopped")
	applog.Close()
}
