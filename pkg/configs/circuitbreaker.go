package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CircuitBreakerConfig 对象存储调用的熔断配置.
//
// 统计窗口内请求数达到 MinRequests 且失败比例不低于 FailureRate 时断开，
// OpenTimeout 后进入半开状态，最多放行 HalfOpenRequests 个探测请求.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureRate      float64       `mapstructure:"failure_rate"       rule:"min=0,max=1"`
	MinRequests      uint32        `mapstructure:"min_requests"`
	Window           time.Duration `mapstructure:"window"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.failure_rate", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 5)
	v.SetDefault("circuit_breaker.window", time.Minute)
	v.SetDefault("circuit_breaker.open_timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.half_open_requests", 1)
}
