// Package app 提供应用程序的初始化、运行与优雅关闭.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/dataviz/pkg/api"
	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/jobs"
	"github.com/yeisme/dataviz/pkg/internal/storage"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/metrics"
	"github.com/yeisme/dataviz/pkg/middleware"
	"github.com/yeisme/dataviz/pkg/scheduler"
	"github.com/yeisme/dataviz/pkg/tracing"
)

// shutdownTimeout 关闭 HTTP 服务器与后台组件的最长等待时间.
const shutdownTimeout = 15 * time.Second

type App struct {
	Engine *gin.Engine

	config    *configs.AppConfig
	manager   *storage.Manager
	services  *api.Services
	scheduler *scheduler.Scheduler
	server    *http.Server
	metrics   *http.Server
}

// NewApp 加载配置并初始化所有组件，任一步失败时释放已创建的资源.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()

	log.Init()
	configs.OnReload(func(c *configs.AppConfig) {
		log.SetLevel(c.Log.Level)
	})

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	// 初始化追踪
	if err := tracing.InitTracer(ctx, config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx, config)
	if err != nil {
		_ = tracing.ShutdownTracer(ctx)

		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{
		config:   config,
		manager:  manager,
		services: api.NewServices(manager, config),
	}

	if a.scheduler, err = scheduler.NewScheduler(); err != nil {
		_ = a.close(ctx)

		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(ctx, a.scheduler, a.services.Reconcile, config.Ingest); err != nil {
		_ = a.close(ctx)

		return nil, fmt.Errorf("register jobs: %w", err)
	}

	a.Engine = a.newEngine()

	return a, nil
}

// newEngine 构建业务 gin 引擎与中间件链.
func (a *App) newEngine() *gin.Engine {
	cfg := a.config
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server, cfg.Auth),
		middleware.PrometheusMiddleware(),
		middleware.IdentityMiddleware(cfg.Auth),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.scheduler),
	)

	return api.RegisterRoutes(engine, a.services, cfg)
}

// Run 启动调度器、metrics 服务器与 HTTP 服务器，直到收到 SIGINT/SIGTERM 后优雅关闭.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := log.Logger()

	a.scheduler.Start()

	if err := jobs.RunStartupJobs(a.scheduler, a.config.Ingest); err != nil {
		l.Warn().Err(err).Msg("startup reconcile not run")
	}

	a.metrics = metrics.StartMetricsServer(a.config.Metrics)

	a.server = &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.config.Server.GetTimeoutDuration(),
	}

	errCh := make(chan error, 1)

	go func() {
		l.Info().Str("addr", a.server.Addr).Msg("http server listening")

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		l.Info().Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, a.close(shutdownCtx))
}

// close 依次关闭 HTTP 服务器、调度器、metrics 服务器、存储与追踪.
func (a *App) close(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}

	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Shutdown())
	}

	errs = append(errs,
		metrics.Shutdown(ctx, a.metrics),
		a.manager.Close(),
		tracing.ShutdownTracer(ctx),
	)

	err := errors.Join(errs...)
	if err != nil {
		log.Logger().Error().Err(err).Msg("shutdown finished with errors")
	} else {
		log.Logger().Info().Msg("shutdown complete")
	}

	return err
}
