package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/dataviz/pkg/configs"
)

// limiterIdleTTL 按键限流器闲置超过该时长后被回收.
const limiterIdleTTL = 10 * time.Minute

// RateLimitMiddleware 返回基于 rate_limit 配置的限流中间件.
//
// Key 取值：
//   - global：所有请求共享一个令牌桶
//   - ip：按客户端 IP
//   - user：按身份中间件解析出的用户，需排在 IdentityMiddleware 之后
//   - header:Name：按请求头，缺失时回退到 IP
//
// cfg.Paths 非空时只对匹配前缀的请求限流.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyOf := keyFunc(cfg.Key)
	limiters := newKeyedLimiter(rate.Limit(cfg.RPS), cfg.Burst)

	return func(c *gin.Context) {
		if len(cfg.Paths) > 0 && !matchPrefix(c.Request.URL.Path, cfg.Paths) {
			c.Next()

			return
		}

		if !limiters.allow(keyOf(c), time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})

			return
		}

		c.Next()
	}
}

func keyFunc(mode string) func(*gin.Context) string {
	mode = strings.TrimSpace(mode)

	switch {
	case mode == "" || strings.EqualFold(mode, "global"):
		return func(*gin.Context) string { return "global" }
	case strings.EqualFold(mode, "user"):
		return func(c *gin.Context) string {
			if id, ok := GetUserID(c); ok {
				return "user:" + strconv.FormatUint(uint64(id), 10)
			}

			return "ip:" + clientIP(c)
		}
	case len(mode) > len("header:") && strings.EqualFold(mode[:len("header:")], "header:"):
		name := mode[len("header:"):]

		return func(c *gin.Context) string {
			if v := c.GetHeader(name); v != "" {
				return "header:" + v
			}

			return "ip:" + clientIP(c)
		}
	default:
		return func(c *gin.Context) string { return "ip:" + clientIP(c) }
	}
}

// keyedLimiter 每个键一个令牌桶，访问时顺带清理闲置条目.
type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{limit: limit, burst: burst, entries: map[string]*limiterEntry{}}
}

func (k *keyedLimiter) allow(key string, now time.Time) bool {
	k.mu.Lock()

	if now.Sub(k.lastSweep) > limiterIdleTTL {
		for key, e := range k.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(k.entries, key)
			}
		}

		k.lastSweep = now
	}

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}

	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}

	return "unknown"
}
