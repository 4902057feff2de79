// Package router 管理路由配置，把 pkg/internal/handle 的处理器绑定到 gin 引擎.
package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/internal/handle"
)

// UploadHandlers 定义由应用层注入的上传处理器. router 包只负责将路径和处理器绑定到 gin 引擎，
// 处理器的实现由 pkg/internal/handle 提供.
type UploadHandlers interface {
	Upload(c *gin.Context)
	ListUploads(c *gin.Context)
	Download(c *gin.Context)
	GetUpload(c *gin.Context)
	ListRecords(c *gin.Context)
}

// RegisterRootRoute 注册服务存活检查 GET /.
func RegisterRootRoute(g *gin.RouterGroup) {
	g.GET("/", handle.Root)
}

// RegisterUploadRoutes 注册上传路由：
//
//	POST   /upload                  -> Upload（/upload/ 同样可用）
//	GET    /upload/list             -> ListUploads（gzip 压缩）
//	GET    /upload/download/:filename -> Download
//	GET    /upload/:id              -> GetUpload
//	GET    /upload/:id/records      -> ListRecords
func RegisterUploadRoutes(g *gin.RouterGroup, h UploadHandlers) {
	uploadRoutes := g.Group("/upload")
	{
		uploadRoutes.POST("", h.Upload)
		uploadRoutes.POST("/", h.Upload)

		uploadRoutes.GET("/list", gzip.Gzip(gzip.DefaultCompression), h.ListUploads)
		uploadRoutes.GET("/download/:filename", h.Download)

		uploadRoutes.GET("/:id", h.GetUpload)
		uploadRoutes.GET("/:id/records", h.ListRecords)
	}
}
