// Package metrics 提供 Prometheus 监控指标，在独立端口暴露 /metrics.
//
// 指标分两部分：本包注册表中的 HTTP 与导入指标，以及默认注册表中的
// 运行时、gorm 连接池（gorm.io/plugin/prometheus）和 watermill 指标，/metrics 合并输出两者.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		return err
//	}
//	srv, err := metrics.StartMetricsServer(cfg.Metrics)
//
//	metrics.IngestTotal.WithLabelValues(metrics.OutcomeOK).Inc()
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/log"
)

const namespace = "dataviz"

// 导入结果标签.
const (
	OutcomeOK          = "ok"
	OutcomeMediaType   = "unsupported_media_type"
	OutcomeContent     = "unsupported_content"
	OutcomeInvalidName = "invalid_filename"
	OutcomePartial     = "partial_commit"
	OutcomeError       = "error"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器，endpoint 为路由模板.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 进行中的请求数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// IngestTotal 导入请求按结果计数.
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_uploads_total",
			Help:      "Uploads processed by the ingestion pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	// IngestRecords 已提交的数据行总数.
	IngestRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Data records committed, by source format",
		},
		[]string{"format"},
	)

	// IngestDuration 导入耗时，从保存文件到记录提交.
	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Ingestion pipeline duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	// IngestBytes 上传文件大小分布.
	IngestBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_file_bytes",
			Help:      "Size of uploaded files in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// ReconcileTotal 对账任务处理的 pending 上传数.
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_uploads_total",
			Help:      "Stale pending uploads resolved by the reconciler, by result",
		},
		[]string{"result"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// InitMetrics 注册指标，可重复调用.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		err = errors.Join(
			registry.Register(RequestCounter),
			registry.Register(RequestDuration),
			registry.Register(ActiveConnections),
			registry.Register(IngestTotal),
			registry.Register(IngestRecords),
			registry.Register(IngestDuration),
			registry.Register(IngestBytes),
			registry.Register(ReconcileTotal),
		)

		// 默认注册表自带运行时收集器
		if !config.RuntimeMetrics {
			prometheus.Unregister(collectors.NewGoCollector())
			prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}
	})

	return err
}

// Handler 返回合并本包与默认注册表的 /metrics 处理器.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// NewMetricsEngine 构建 metrics 专用的 gin 引擎.
func NewMetricsEngine(config configs.MetricsConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/metrics", gin.WrapH(Handler()))

	if config.Pprof {
		pp := engine.Group("/debug/pprof")
		{
			pp.GET("/", gin.WrapF(pprof.Index))
			pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pp.GET("/profile", gin.WrapF(pprof.Profile))
			pp.GET("/symbol", gin.WrapF(pprof.Symbol))
			pp.POST("/symbol", gin.WrapF(pprof.Symbol))
			pp.GET("/trace", gin.WrapF(pprof.Trace))
			pp.GET("/:profile", func(c *gin.Context) {
				pprof.Handler(c.Param("profile")).ServeHTTP(c.Writer, c.Request)
			})
		}
	}

	return engine
}

// StartMetricsServer 在 config.Endpoint 上启动独立的 Metrics HTTP 服务器.
// 未启用时返回 nil.
func StartMetricsServer(config configs.MetricsConfig) *http.Server {
	if !config.Enabled {
		return nil
	}

	srv := &http.Server{
		Addr:              config.Endpoint,
		Handler:           NewMetricsEngine(config),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Logger().Info().Str("endpoint", config.Endpoint).Bool("pprof", config.Pprof).Msg("metrics server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger().Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return srv
}

// Shutdown 优雅关闭 metrics 服务器，srv 为 nil 时忽略.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
