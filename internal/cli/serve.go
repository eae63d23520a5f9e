package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"owl-location/internal/config"
	"owl-location/internal/database"
	"owl-location/internal/events"
	httpapi "owl-location/internal/http"
	"owl-location/internal/logger"
	"owl-location/internal/repository"
	"owl-location/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "owl-location"

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := service.NewServer(cfg.HTTP.Addr, a.router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

// app is the wired service: store, events and router.
type app struct {
	router    *httpapi.Router
	db        *sql.DB
	publisher events.Publisher
	logger    *zap.Logger
}

// newApp wires the service from cfg. With DB_ENABLED and a reachable
// database the Postgres repository is used; otherwise the memory repository.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	strategy, err := service.ParseTreeStrategy(cfg.Tree.Strategy)
	if err != nil {
		return nil, err
	}

	a := &app{logger: log}
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			a.db = d
			log.Info("DB enabled for owl-location")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repository", zap.Error(err))
		}
	}

	var repo repository.LocationsRepository
	if a.db != nil {
		if cfg.Database.Migrate {
			if err := database.MigrateUp(&cfg.Database, log); err != nil {
				a.Close()
				return nil, err
			}
		}
		repo = repository.NewPostgresLocationsRepository(a.db,
			repository.WithSnapshotReads(cfg.Database.SnapshotReads))
	} else {
		// DB 未就绪：使用内存 repo 支持联调
		repo = repository.NewMemoryLocationsRepo()
	}

	a.publisher, err = events.New(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	svc := service.NewLocationService(repo, log,
		service.WithTreeStrategy(strategy),
		service.WithMaxDepth(cfg.Tree.MaxDepth),
		service.WithPublisher(a.publisher),
	)

	a.router = httpapi.NewRouter(log)
	a.router.RegisterLocationRoutes(httpapi.NewLocationHandler(svc, log))
	var ping func(context.Context) error
	if a.db != nil {
		ping = a.db.PingContext
	}
	a.router.RegisterHealthRoutes(ping)

	log.Info("owl-location wired",
		zap.String("tree_strategy", string(strategy)),
		zap.Int("tree_max_depth", cfg.Tree.MaxDepth),
		zap.String("events_backend", cfg.Events.Backend),
		zap.Bool("postgres", a.db != nil),
	)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
}
