package cli

import (
	"log/slog"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/auth"
	"github.com/lfreitas-dev/hrbridge/internal/cache"
	"github.com/lfreitas-dev/hrbridge/internal/config"
	"github.com/lfreitas-dev/hrbridge/internal/dispatch"
	"github.com/lfreitas-dev/hrbridge/internal/feed"
	"github.com/lfreitas-dev/hrbridge/internal/pipeline"
	"github.com/lfreitas-dev/hrbridge/internal/store"
)

// app bundles the wired components every command works against.
type app struct {
	cfg    *config.Config
	store  *store.Store
	tokens *auth.SourceTokenProvider
	runner *pipeline.Runner
}

// newApp loads the configuration, reinstalls logging with the config's log
// section applied, opens the database, and wires the sync pipeline.
func newApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(opts, cfg)

	st, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	tokens := &auth.SourceTokenProvider{
		Static: cfg.Source.Token,
		Creds: auth.Credentials{
			LoginURL: cfg.Source.LoginURL,
			Alias:    cfg.Source.Alias,
			User:     cfg.Source.User,
			Password: cfg.Source.Password,
		},
		CacheFile: cfg.Source.TokenCacheFile,
	}

	runner := &pipeline.Runner{
		Tokens: tokens,
		Fetcher: &feed.Fetcher{
			BaseURL:  cfg.Source.BaseURL,
			PageSize: cfg.Source.PageSize,
		},
		Cache: cache.New(st, time.Duration(cfg.Cache.TTLMinutes)*time.Minute, cfg.Companies.Allowed),
		Store: st,
		REST: &dispatch.RESTClient{
			URL:       cfg.Target.URL,
			User:      cfg.Target.User,
			TokenBase: cfg.Target.TokenBase,
		},
		KeyField:  cfg.Sync.KeyField,
		ReportDir: cfg.Sync.ReportDir,
	}
	if cfg.Source.SituationsURL != "" {
		runner.Catalog = &feed.CatalogLoader{
			URL:       cfg.Source.SituationsURL,
			CacheFile: "situacoes.json",
		}
	}
	if cfg.SOAP.URL != "" {
		runner.Sender = &dispatch.TerminationSender{
			SOAP: &dispatch.SOAPClient{
				URL:       cfg.SOAP.URL,
				ClientID:  cfg.SOAP.ClientID,
				User:      cfg.SOAP.User,
				Password:  cfg.SOAP.Password,
				Namespace: cfg.SOAP.Namespace,
			},
			Ledger: st,
		}
	}

	return &app{cfg: cfg, store: st, tokens: tokens, runner: runner}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
