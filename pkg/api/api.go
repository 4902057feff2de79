// Package api 组装服务层并把 HTTP 路由注册到 gin 引擎.
package api

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/cache"
	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/handle"
	"github.com/yeisme/dataviz/pkg/internal/router"
	"github.com/yeisme/dataviz/pkg/internal/service"
	"github.com/yeisme/dataviz/pkg/internal/storage"
)

// catalogCacheNamespace 上传列表缓存在 KV 中的键前缀.
const catalogCacheNamespace = "dataviz:catalog"

// Services 由存储管理器构建的服务集合.
type Services struct {
	Events    *service.Events
	Catalog   *service.CatalogService
	Ingest    *service.IngestService
	Reconcile *service.ReconcileService
}

// NewServices 按配置构建服务；未初始化的 MQ 或 KV 对应功能关闭.
func NewServices(mgr *storage.Manager, cfg *configs.AppConfig) *Services {
	var pub message.Publisher
	if mgr.MQ != nil {
		pub = mgr.MQ
	}

	events := service.NewEvents(pub, cfg.Events)

	var catalogOpts []service.CatalogOption
	if mgr.KV != nil {
		c := cache.NewCache(mgr.KV, catalogCacheNamespace)
		catalogOpts = append(catalogOpts, service.WithListCache(c, cfg.Catalog.Cache.TTL))
	}

	catalog := service.NewCatalogService(mgr.Files, mgr.Records(), catalogOpts...)

	return &Services{
		Events:  events,
		Catalog: catalog,
		Ingest: service.NewIngestService(mgr.Files, mgr.Records(), cfg.Ingest,
			service.WithEvents(events),
			service.WithCatalog(catalog),
		),
		Reconcile: service.NewReconcileService(mgr.Records(), events, cfg.Ingest.PendingGrace,
			service.WithReconcileCatalog(catalog)),
	}
}

// RegisterRoutes 注册全部 HTTP 路由.
func RegisterRoutes(e *gin.Engine, svcs *Services, cfg *configs.AppConfig) *gin.Engine {
	h := handle.New(svcs.Ingest, svcs.Catalog, cfg.Ingest.MaxUploadBytes)

	router.RegisterRootRoute(&e.RouterGroup)
	router.RegisterUploadRoutes(&e.RouterGroup, h)
	router.RegisterHealthCheckRoute(&e.RouterGroup)
	router.RegisterSchedulerRoutes(&e.RouterGroup)
	router.RegisterSwaggerRoute(e, cfg.Server)

	return e
}
