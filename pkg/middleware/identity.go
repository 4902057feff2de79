package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/context"
)

const userIDKey = "user_id"

// IdentityMiddleware 从网关注入的请求头解析上传归属用户.
//   - 头部缺失：auth.required 时返回 401，否则使用 auth.default_user_id
//   - 头部不是正整数：400
//   - auth.skip_paths 中的路径前缀不做解析
func IdentityMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	header := conf.UserHeader
	if header == "" {
		header = "X-User-ID"
	}

	return func(c *gin.Context) {
		if matchPrefix(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()

			return
		}

		raw := strings.TrimSpace(c.GetHeader(header))

		var id uint

		switch {
		case raw == "" && conf.Required:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + header + " header"})

			return
		case raw == "":
			id = conf.DefaultUserID
		default:
			n, err := strconv.ParseUint(raw, 10, 0)
			if err != nil || n == 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + header + " header"})

				return
			}

			id = uint(n)
		}

		c.Set(userIDKey, id)
		c.Request = c.Request.WithContext(context.WithUserID(c.Request.Context(), id))

		c.Next()
	}
}

// GetUserID 返回身份中间件解析出的用户 ID.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}

	id, ok := v.(uint)

	return id, ok
}
