package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/configs"
)

// CORSMiddleware CORS中间件，调试模式下允许所有来源.
func CORSMiddleware(cfg configs.ServerConfig, auth configs.AuthConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = cfg.CORSOrigins
	config.AllowCredentials = true
	config.AddAllowHeaders(auth.UserHeader, RequestIDHeader)
	config.AddExposeHeaders(RequestIDHeader, "Content-Disposition")

	if cfg.Debug || len(cfg.CORSOrigins) == 0 {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	}

	return cors.New(config)
}
