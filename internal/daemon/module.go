package daemon

import (
	"context"

	"github.com/matheus3301/hanger/internal/api"
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/chat"
	"github.com/matheus3301/hanger/internal/config"
	"github.com/matheus3301/hanger/internal/favorites"
	"github.com/matheus3301/hanger/internal/instance"
	"github.com/matheus3301/hanger/internal/lock"
	"github.com/matheus3301/hanger/internal/logging"
	"github.com/matheus3301/hanger/internal/metrics"
	"github.com/matheus3301/hanger/internal/pins"
	"github.com/matheus3301/hanger/internal/profile"
	"github.com/matheus3301/hanger/internal/store"
	"github.com/matheus3301/hanger/internal/upload"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	InstanceName string
	SocketPath   string         // optional override for testing; empty = use default
	Config       *config.Config // optional; nil = load from disk and environment
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			metrics.New,
			provideUploader,
			provideSynchronizer,
			provideRegistry,
			favorites.NewProjection,
			provideProfiles,
			api.NewChatService,
			api.NewPinService,
			provideMediaService,
			NewServer,
			provideMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	cfg, err := config.LoadOrDefault(instance.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, instance.EnvPath()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(instance.LogPath(p.InstanceName), p.InstanceName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.InstanceName); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.InstanceName))
	l, err := lock.Acquire(instance.LockPath(p.InstanceName))
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

// provideStore depends on the lock so that only the lock holder opens the database.
func provideStore(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := instance.AppDBPath(p.InstanceName)
	db, err := store.Open(dbPath, b, logger)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideUploader(cfg *config.Config, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *upload.Pipeline {
	if cfg.Upload.ClientID == "" {
		logger.Warn("no upload client id configured; uploads will be rejected")
	}
	return upload.NewPipeline(cfg.UploadPipeline(), b, m, logger.Named("upload"))
}

func provideSynchronizer(db *store.DB, m *metrics.Metrics, logger *zap.Logger) *chat.Synchronizer {
	return chat.NewSynchronizer(db, m, logger.Named("chat"))
}

func provideRegistry(db *store.DB, m *metrics.Metrics, logger *zap.Logger) *pins.Registry {
	return pins.NewRegistry(db, m, logger.Named("pins"))
}

func provideProfiles(db *store.DB, u *upload.Pipeline, cfg *config.Config, logger *zap.Logger) *profile.Service {
	return profile.NewService(db, u, cfg.ProfileBaseURL, logger.Named("profile"))
}

func provideMediaService(u *upload.Pipeline, profiles *profile.Service) *api.MediaService {
	return api.NewMediaService(u, profiles)
}

func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*MetricsServer, error) {
	return NewMetricsServer(cfg.MetricsAddr, m, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, ms *MetricsServer, db *store.DB, lk *lock.Lock, b *bus.Bus, logger *zap.Logger) {
	var stopEvents func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			stopEvents = logUploadEvents(b, logger)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			ms.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			ms.Stop(ctx)
			stopEvents()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
