package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Upload  UploadEventsConfig `mapstructure:"upload"`
}

// UploadEventsConfig 上传导入流程的事件开关。
type UploadEventsConfig struct {
	Stored   bool `mapstructure:"stored"`
	Ingested bool `mapstructure:"ingested"`
	Rejected bool `mapstructure:"rejected"`
	Failed   bool `mapstructure:"failed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.upload.stored", false)
	v.SetDefault("events.upload.ingested", true)
	v.SetDefault("events.upload.rejected", true)
	v.SetDefault("events.upload.failed", true)
}
