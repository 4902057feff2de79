package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// ContentTypeCSV 逗号分隔文本.
	ContentTypeCSV = "text/csv"
	// ContentTypeXLSX Excel 工作簿.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DefaultMaxUploadBytes = 32 << 20         // 单个上传文件最大字节数 (32MB)
	DefaultBatchSize      = 500              // 每批插入的记录数
	DefaultStrictColumns  = true             // 列名规范化后冲突时报错
	DefaultPendingGrace   = 10 * time.Minute // pending 状态超过该时长视为中断
	DefaultReconcileCron  = "*/10 * * * *"   // 对账任务执行周期
)

// IngestConfig 表格导入流程配置.
type IngestConfig struct {
	AllowedContentTypes []string      `mapstructure:"allowed_content_types" rule:"min=1"`
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes"      rule:"min=1"`
	BatchSize           int           `mapstructure:"batch_size"            rule:"min=1,max=10000"`
	StrictColumns       bool          `mapstructure:"strict_columns"`
	PendingGrace        time.Duration `mapstructure:"pending_grace"`
	ReconcileCron       string        `mapstructure:"reconcile_cron"        rule:"cron"`
	ReconcileOnStart    bool          `mapstructure:"reconcile_on_start"`
}

func (c *IngestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.allowed_content_types", []string{ContentTypeCSV, ContentTypeXLSX})
	v.SetDefault("ingest.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("ingest.batch_size", DefaultBatchSize)
	v.SetDefault("ingest.strict_columns", DefaultStrictColumns)
	v.SetDefault("ingest.pending_grace", DefaultPendingGrace)
	v.SetDefault("ingest.reconcile_cron", DefaultReconcileCron)
	v.SetDefault("ingest.reconcile_on_start", true)
}

// CatalogConfig 上传列表配置.
type CatalogConfig struct {
	Cache CatalogCacheConfig `mapstructure:"cache"`
}

// CatalogCacheConfig 列表缓存，存放在 KV 中.
type CatalogCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func (c *CatalogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.cache.enabled", false)
	v.SetDefault("catalog.cache.ttl", 30*time.Second)
}
