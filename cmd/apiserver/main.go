package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/cache"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/handler"
	"github.com/amoylab/wshub/internal/apiserver/membership"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/apiserver/scheduler"
	"github.com/amoylab/wshub/internal/auth/jwt"
	authstore "github.com/amoylab/wshub/internal/auth/storage"
	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/internal/common/config"
	"github.com/amoylab/wshub/internal/i18n"
	"github.com/amoylab/wshub/internal/storage"
	"github.com/amoylab/wshub/pkg/logger"
	"github.com/amoylab/wshub/pkg/metrics"
	"github.com/amoylab/wshub/pkg/trace"
	"github.com/amoylab/wshub/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("apiserver version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "Workspace hub API server",
		Long:  `apiserver serves the workspace hub REST API: accounts, workspaces, memberships, activities and environments`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.ApiServerYaml, "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

// app holds everything the router needs so tests can build it without serving
type app struct {
	cfg      *config.APIServerConfig
	logger   *zap.Logger
	db       database.Database
	sessions authstore.Store
	metrics  *metrics.Metrics
	avatars  *cache.MultiLayerCache
	retest   *scheduler.RetestScheduler
	router   *gin.Engine
}

func initLogger(cfg *config.APIServerConfig) *zap.Logger {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return lg
}

func initDatabase(ctx context.Context, lg *zap.Logger, cfg *config.APIServerConfig) (database.Database, error) {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Database.Type, err)
	}
	if err := database.InitPlatformRoles(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seeding platform roles: %w", err)
	}
	admin, err := database.InitSuperAdmin(ctx, db, cfg.SuperAdmin)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seeding super admin: %w", err)
	}
	if admin != nil {
		lg.Info("super admin ready", zap.String("username", admin.Username))
	}
	return db, nil
}

func initI18n(lg *zap.Logger, cfg *config.I18nConfig) {
	if err := i18n.InitTranslator(cfg.Path); err != nil {
		lg.Warn("translations not loaded, falling back to default messages",
			zap.String("path", cfg.Path), zap.Error(err))
	}
}

func newApp(ctx context.Context, cfg *config.APIServerConfig, lg *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: lg, metrics: metrics.New(cfg.Metrics)}

	jwtService, err := jwt.NewService(jwt.Config{SecretKey: cfg.JWT.SecretKey, Duration: cfg.JWT.Duration})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	if a.db, err = initDatabase(ctx, lg, cfg); err != nil {
		return nil, err
	}
	if a.sessions, err = authstore.NewStore(lg, &cfg.Session); err != nil {
		a.close()
		return nil, fmt.Errorf("session store: %w", err)
	}
	var avatars storage.Storage
	if avatars, err = storage.New(lg, cfg.Storage); err != nil {
		a.close()
		return nil, fmt.Errorf("avatar storage: %w", err)
	}
	if cfg.Storage.Cache.Enabled {
		if a.avatars, err = cache.New(cfg.Storage.Cache, lg); err != nil {
			a.close()
			return nil, fmt.Errorf("avatar cache: %w", err)
		}
		avatars = cache.NewCachedStorage(avatars, a.avatars, lg)
	}
	sealer, err := environment.NewSealer(cfg.Environment.Secret, cfg.Environment.ScryptWorkFactor)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("environment sealer: %w", err)
	}
	if sealer.Ephemeral() {
		lg.Warn("environment.secret is empty, stored environment passwords will not survive a restart")
	}

	activities := activity.NewService(a.db, lg, a.metrics)
	members := membership.NewService(a.db, activities, a.metrics, lg)
	envs := environment.NewService(a.db, sealer, environment.SQLDialer{}, cfg.Environment.TestTimeout, activities, a.metrics, lg)
	a.retest = scheduler.NewRetestScheduler(scheduler.RetestConfig{
		Lister:   a.db,
		Retester: envs,
		Logger:   lg,
		Interval: cfg.Environment.RetestInterval,
		Workers:  cfg.Environment.RetestWorkers,
	})

	h := handler.NewHandler(handler.Options{
		DB:           a.db,
		JWT:          jwtService,
		Sessions:     a.sessions,
		Members:      members,
		Activities:   activities,
		Environments: envs,
		Avatars:      avatars,
		Observer:     a.metrics,
		RefreshTTL:   cfg.Session.RefreshTTL,
		MaxAvatar:    cfg.Storage.MaxSize,
		Logger:       lg,
	})

	a.router = initRouter(cfg, a.metrics, h)
	return a, nil
}

func initRouter(cfg *config.APIServerConfig, m *metrics.Metrics, h *handler.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(m.Middleware())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(i18n.LanguageMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/internal-metrics", gin.WrapH(m.Handler()))

	h.RegisterRoutes(r.Group("/api"))
	return r
}

func (a *app) close() {
	if a.retest != nil {
		a.retest.Stop()
	}
	if a.avatars != nil {
		if err := a.avatars.Close(); err != nil {
			a.logger.Warn("failed to close avatar cache", zap.Error(err))
		}
	}
	if closer, ok := a.sessions.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("failed to close session store", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, cfgPath, err := config.LoadConfig[config.APIServerConfig](configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", cfgPath, err)
	}

	lg := initLogger(cfg)
	defer lg.Sync()
	lg.Info("Loaded configuration", zap.String("path", cfgPath))

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			lg.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	initI18n(lg, &cfg.I18n)
	gin.SetMode(gin.ReleaseMode)

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to initialize apiserver", zap.Error(err))
	}
	defer a.close()

	if err := a.retest.Start(ctx); err != nil {
		lg.Fatal("Failed to start environment retest scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("Starting apiserver", zap.String("version", version.Get()), zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down apiserver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server forced to shutdown", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
