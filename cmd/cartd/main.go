package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"CartCast/internal/cart"
	"CartCast/internal/config"
	"CartCast/internal/events"
	"CartCast/internal/gateway"
	"CartCast/pkg/kit"
)

const service = "cartd"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          service,
		Short:        "Session-scoped cart service with a popup event stream",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml, json or toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the Postgres cart schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), cfgPath)
			},
		},
	)
	return root
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, err := kit.NewLogger(service, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		log.Error("open store failed", zap.Error(err), zap.String("driver", cfg.Store.Driver))
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	broadcaster := events.NewBroadcaster(cfg.Events.Buffer, log, events.NewMetrics(reg))
	defer broadcaster.Close()

	h := gateway.NewHandler(
		gateway.Deps{
			Cart: &cart.Server{
				Engine:         cart.NewEngine(store, log, cart.NewMetrics(reg)),
				Log:            log,
				DefaultSession: cfg.Cart.DefaultSession,
			},
			Events: &events.Server{
				Broadcaster: broadcaster,
				Log:         log,
				PopupURL:    cfg.Events.PopupURL,
				Heartbeat:   cfg.Events.Heartbeat,
			},
			PopupLimitPerMin: cfg.RateLimit.PopupPerMin,
		},
		gateway.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsToken:   cfg.Metrics.Token,
			CORSOrigins:    cfg.CORS.AllowedOrigins,
		},
	)

	log.Info("store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("cache_size", cfg.Store.Cache.Size),
	)
	if err := kit.RunHTTPServer(ctx, cfg.HTTP.Addr, h, log); err != nil {
		log.Error("http server stopped", zap.Error(err))
		return err
	}
	return nil
}

func migrate(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs store.driver=%s, got %q", config.DriverPostgres, cfg.Store.Driver)
	}

	db, err := sql.Open("pgx", cfg.Store.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cart.NewPostgresStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(os.Stdout, "carts schema ready")
	return nil
}

func openStore(cfg config.Store) (cart.Store, func(), error) {
	var (
		store   cart.Store
		closeFn = func() {}
	)

	switch cfg.Driver {
	case config.DriverMemory:
		store = cart.NewMemStore()
	case config.DriverFile:
		fs, err := cart.NewFileStore(cfg.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = cart.NewPostgresStore(db)
		closeFn = func() { _ = db.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if cfg.Cache.Size > 0 {
		cached, err := cart.NewCachedStore(store, cfg.Cache.Size)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		store = cached
	}
	return store, closeFn, nil
}
