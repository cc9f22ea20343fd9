package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/auth"
	"github.com/beroe-labs/abi/internal/category"
	"github.com/beroe-labs/abi/internal/chat"
	"github.com/beroe-labs/abi/internal/evidence"
	"github.com/beroe-labs/abi/internal/interests"
	"github.com/beroe-labs/abi/internal/kvstore"
	"github.com/beroe-labs/abi/internal/ledger"
	"github.com/beroe-labs/abi/internal/security"
	"github.com/beroe-labs/abi/internal/server"
	"github.com/beroe-labs/abi/internal/synthesis"
	"github.com/beroe-labs/abi/pkg/gemini"
	"github.com/beroe-labs/abi/pkg/intel"
	"github.com/beroe-labs/abi/pkg/perplexity"
)

// appEnv holds the initialized stores and services the serve command needs.
type appEnv struct {
	LedgerStore ledger.Store
	AuthStore   auth.Store
	Ledger      *ledger.Service
	Server      *server.Server
}

// Close releases the database handles.
func (ae *appEnv) Close() {
	if ae.LedgerStore != nil {
		_ = ae.LedgerStore.Close()
	}
	if ae.AuthStore != nil {
		_ = ae.AuthStore.Close()
	}
}

// initStores opens the ledger and auth stores on the configured driver.
func initStores(ctx context.Context) (ledger.Store, auth.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		ls, err := ledger.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		as, err := auth.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			_ = ls.Close()
			return nil, nil, err
		}
		return ls, as, nil
	case "postgres":
		ls, err := ledger.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			return nil, nil, err
		}
		as, err := auth.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			_ = ls.Close()
			return nil, nil, err
		}
		return ls, as, nil
	default:
		return nil, nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// initKV picks the key-value backend for rate limits, verification codes,
// and the evidence cache.
func initKV() (kvstore.Store, error) {
	if cfg.Cache.RedisURL == "" {
		return kvstore.NewMemory(), nil
	}
	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse redis url")
	}
	zap.L().Info("using redis cache", zap.String("addr", opts.Addr))
	return kvstore.NewRedis(redis.NewClient(opts)), nil
}

// initApp wires stores, services, the chat pipeline, and the HTTP server.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("serve"); err != nil {
		return nil, err
	}

	ledgerStore, authStore, err := initStores(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{LedgerStore: ledgerStore, AuthStore: authStore}

	if err := ledgerStore.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate ledger store")
	}
	if err := authStore.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate auth store")
	}

	kv, err := initKV()
	if err != nil {
		env.Close()
		return nil, err
	}

	catalog := category.DefaultCatalog()
	if cfg.Catalog.Path != "" {
		catalog, err = category.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	var intelOpts []intel.Option
	if cfg.Intel.BaseURL != "" {
		intelOpts = append(intelOpts, intel.WithBaseURL(cfg.Intel.BaseURL))
	}
	intelClient := intel.NewClient(cfg.Intel.Key, intelOpts...)

	geminiOpts := []gemini.Option{gemini.WithModel(cfg.Gemini.Model)}
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	synth := synthesis.NewSynthesizer(gemini.NewClient(cfg.Gemini.Key, geminiOpts...), cfg.Gemini.Model)

	chatOpts := []chat.Option{chat.WithCategories(catalog)}
	if cfg.Perplexity.Key != "" {
		perplexityOpts := []perplexity.Option{perplexity.WithModel(cfg.Perplexity.Model)}
		if cfg.Perplexity.BaseURL != "" {
			perplexityOpts = append(perplexityOpts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		chatOpts = append(chatOpts, chat.WithResearch(perplexity.NewClient(cfg.Perplexity.Key, perplexityOpts...), cfg.Perplexity.Model))
	} else {
		zap.L().Warn("ABI_PERPLEXITY_KEY not set, web research disabled")
	}

	pipeline := chat.NewPipeline(evidence.NewFetcher(intelClient, kv), synth, chatOpts...)

	authSvc := auth.NewService(authStore, kv, cfg.Auth)
	env.Ledger = ledger.NewService(ledgerStore, cfg.Credits)
	interestsSvc := interests.NewService(category.NewMatcher(), catalog)

	env.Server = server.NewServer(
		server.Config{
			CookieSecret:   cfg.Server.CookieSecret,
			SecureCookies:  cfg.Server.SecureCookies,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		authSvc,
		env.Ledger,
		interestsSvc,
		pipeline,
		intelClient,
		security.NewRateLimiter(kv),
	)
	return env, nil
}
