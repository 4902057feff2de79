// Package configs 管理应用程序配置，包括Metrics的配置信息.
// Metrics配置支持Prometheus等监控系统.
//
// Example:
//
//	config := configs.GetConfig()
//	metricsConfig := config.Metrics
//	if metricsConfig.Enabled {
//		// 初始化Metrics
//	}
package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled           bool              `mapstructure:"enabled"`             // 是否启用Metrics
	ServiceName       string            `mapstructure:"service_name"`        // 服务名称
	Endpoint          string            `mapstructure:"endpoint"`            // 独立 metrics 服务监听地址
	Pprof             bool              `mapstructure:"pprof"`               // 是否在 metrics 服务上暴露 pprof
	RuntimeMetrics    bool              `mapstructure:"runtime_metrics"`     // 是否收集运行时指标
	DBMetrics         bool              `mapstructure:"db_metrics"`          // 是否启用 gorm 连接池指标
	DBRefreshInterval uint32            `mapstructure:"db_refresh_interval"` // gorm 指标刷新间隔（秒）
	Labels            map[string]string `mapstructure:"labels"`              // 默认标签
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.service_name", "dataviz")
	v.SetDefault("metrics.endpoint", ":9090")
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.db_metrics", true)
	v.SetDefault("metrics.db_refresh_interval", 15)
	v.SetDefault("metrics.labels", map[string]string{
		"service": "dataviz",
		"version": AppVersion,
	})
}
