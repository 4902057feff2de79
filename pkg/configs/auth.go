package configs

import "github.com/spf13/viper"

// AuthConfig 控制上传归属的用户身份，身份由上游网关注入请求头.
type AuthConfig struct {
	Required      bool     `mapstructure:"required"`        // 缺少身份头时拒绝请求
	UserHeader    string   `mapstructure:"user_header"      rule:"required"`
	DefaultUserID uint     `mapstructure:"default_user_id"` // 未启用 required 时的占位用户
	SkipPaths     []string `mapstructure:"skip_paths"`      // 跳过身份解析的路径前缀
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.required", false)
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("auth.default_user_id", 1)
	v.SetDefault("auth.skip_paths", []string{
		"/health",
		"/swagger",
	})
}
