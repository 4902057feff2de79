// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/internal/service"
	"github.com/yeisme/dataviz/pkg/log"
)

const (
	msgRunning          = "Backend is running successfully"
	msgUnsupportedMedia = "Only CSV or Excel files are allowed"
	msgFileNotFound     = "File not found"
	msgUploadNotFound   = "Upload not found"
)

// multipartOverhead 请求体上限在文件上限之外为 multipart 边界和表单头预留的字节数.
const multipartOverhead = 1 << 20

// Handlers 上传相关请求处理器，由应用层注入服务.
type Handlers struct {
	ingest  *service.IngestService
	catalog *service.CatalogService

	maxUploadBytes int64
}

// New 创建 Handlers，maxUploadBytes <= 0 表示请求体不设上限.
func New(ingest *service.IngestService, catalog *service.CatalogService, maxUploadBytes int64) *Handlers {
	return &Handlers{ingest: ingest, catalog: catalog, maxUploadBytes: maxUploadBytes}
}

// Root 服务存活检查.
//
//	@Summary	服务状态
//	@Tags		系统
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/ [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": msgRunning})
}

// statusFor 把服务层错误映射为 HTTP 状态码.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnsupportedMediaType),
		errors.Is(err, service.ErrUnsupportedContent),
		errors.Is(err, service.ErrInvalidFilename):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// abortError 写入错误响应，5xx 记录为错误日志.
func abortError(c *gin.Context, status int, msg string, err error) {
	l := log.Logger()
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	} else {
		l.Warn().Err(err).Str("path", c.FullPath()).Msg(msg)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
