package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/app"
	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
	"github.com/klabast/wb-services/signup-calendar/internal/mirror"
	"github.com/klabast/wb-services/signup-calendar/internal/storage"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the signup API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}
}

func runServe(cmd *cobra.Command, o *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log := o.cfg, o.log

	store, l, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	targets := []mirror.Target{{Name: string(cfg.Storage.Type), Sink: store}}
	if cfg.RemoteConfigured() {
		remote, err := storage.NewS3Store(ctx, cfg.Remote, cfg.Storage.DataFile)
		if err != nil {
			return fmt.Errorf("remote mirror: %w", err)
		}
		defer remote.Close()
		targets = append(targets, mirror.Target{Name: "remote", Sink: remote})
	}

	m := mirror.New(l.All, targets, mirror.Options{
		Prefix:  cfg.ArtifactPrefix,
		Timeout: cfg.Storage.Timeout,
		Logger:  log.Named("mirror"),
	})
	m.Start()
	defer m.Stop()
	l.OnChange(m.Notify)

	if fileStore, ok := store.(*storage.FileStore); ok && cfg.Storage.Watch {
		w, err := storage.NewWatcher(fileStore.Path(), func() {
			if err := l.Reload(context.Background()); err != nil {
				log.Warn("reload after file change failed", zap.Error(err))
			}
		}, log.Named("watcher"))
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		defer w.Stop()
	}

	authFile, err := app.ResolveAuthFile(cfg.AuthFile)
	if err != nil {
		return err
	}
	auth, err := app.LoadAuthenticator(authFile, log.Named("auth"))
	if err != nil {
		return fmt.Errorf("failed to load auth credentials: %w", err)
	}

	limiter := app.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()

	srv, err := app.NewServer(app.Deps{
		Config:      cfg,
		Ledger:      l,
		Store:       store,
		Auth:        auth,
		Limiter:     limiter,
		Logger:      log.Named("http"),
		ReadThrough: cfg.Storage.Type == storage.TypeS3 || cfg.Storage.Type == storage.TypeRedis,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// openLedger builds the configured backend and loads the ledger from it.
func openLedger(ctx context.Context, cfg app.Config, log *zap.Logger) (storage.Store, *ledger.Ledger, error) {
	store, err := storage.New(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	if rs, ok := store.(*storage.RedisStore); ok {
		if err := rs.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
	}

	l := ledger.New(store, ledger.Options{
		Calendar:        cfg.Calendar(),
		StrictDates:     cfg.Signup.StrictDates,
		StrictSlots:     cfg.Signup.StrictSlots,
		SlotPreferences: cfg.Signup.SlotPreferences,
		FallbackEmpty:   cfg.Signup.FallbackEmpty,
		Timeout:         cfg.Storage.Timeout,
		Logger:          log.Named("ledger"),
	})
	if err := l.Load(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to load calendar data: %w", err)
	}
	log.Info("calendar data loaded",
		zap.String("storage", string(cfg.Storage.Type)),
		zap.Int("dates", len(l.All())))
	return store, l, nil
}
