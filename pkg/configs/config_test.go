package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dataviz/pkg/configs"
)

// TestInitConfigDefaults 测试无配置文件时使用默认值.
func TestInitConfigDefaults(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	c := configs.GetConfig()
	assert.Equal(t, configs.DefaultPort, c.Server.Port)
	assert.Equal(t, configs.SQLite, c.DB.Type)
	assert.Equal(t, configs.FileStoreLocal, c.FileStore.Type)
	assert.Equal(t, "uploads", c.FileStore.Local.Root)
	assert.ElementsMatch(t, []string{configs.ContentTypeCSV, configs.ContentTypeXLSX}, c.Ingest.AllowedContentTypes)
	assert.True(t, c.Ingest.StrictColumns)
	assert.Equal(t, 10*time.Minute, c.Ingest.PendingGrace)
	assert.Equal(t, uint(1), c.Auth.DefaultUserID)
	assert.Equal(t, configs.MQTypeMemory, c.MQ.Type)
	assert.Equal(t, "memory", c.KV.Type)
	assert.Equal(t, configs.LogFormatConsole, c.Log.Format)
	assert.Equal(t, "user", c.RateLimit.Key)
	assert.Equal(t, time.Minute, c.CircuitBreaker.Window)
	assert.Equal(t, 30*time.Second, c.CircuitBreaker.OpenTimeout)
	assert.Equal(t, 5*time.Second, c.Tracing.BatchTimeout)
}

// TestInitConfigFile 测试从目录中的 config.yaml 读取配置.
func TestInitConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9999
  reload_config: false
ingest:
  batch_size: 50
  strict_columns: false
filestore:
  local:
    root: /tmp/dataviz-files
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	require.NoError(t, configs.InitConfig(dir))

	c := configs.GetConfig()
	assert.Equal(t, 9999, c.Server.Port)
	assert.Equal(t, 50, c.Ingest.BatchSize)
	assert.False(t, c.Ingest.StrictColumns)
	assert.Equal(t, "/tmp/dataviz-files", c.FileStore.Local.Root)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), configs.GetViper().ConfigFileUsed())
}

// TestInitConfigInvalid 测试非法配置被拒绝.
func TestInitConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("db:\n  type: oracle\n"), 0o600))

	err := configs.InitConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

// TestGetDSN 测试不同数据库类型的 DSN.
func TestGetDSN(t *testing.T) {
	c := configs.DBConfig{Type: configs.SQLite, Database: "dataviz"}
	assert.Equal(t, "file:dataviz.db?_pragma=foreign_keys(1)", c.GetDSN())

	c = configs.DBConfig{Type: configs.MySQL, User: "u", Password: "p", Host: "h", Port: 3306, Database: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", c.GetDSN())

	c.DSN = "override"
	assert.Equal(t, "override", c.GetDSN())
}

// TestEnvOverride 测试环境变量覆盖.
func TestEnvOverride(t *testing.T) {
	t.Setenv("DATAVIZ_INGEST_BATCH_SIZE", "7")

	require.NoError(t, configs.InitConfig(t.TempDir()))
	assert.Equal(t, 7, configs.GetConfig().Ingest.BatchSize)
}
