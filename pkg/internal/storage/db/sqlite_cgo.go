//go:build !no_sqlite && cgo

package db

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/dataviz/pkg/configs"
)

// createSQLiteDialector 创建SQLite dialector (CGo版本).
// go-sqlite3 不识别 _pragma 参数，外键开关改用 _foreign_keys.
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(strings.Replace(dsn, "_pragma=foreign_keys(1)", "_foreign_keys=1", 1))
}

// 注册SQLite dialector工厂函数 (CGo版本).
func init() {
	RegisterDialectorFactory(createSQLiteDialector, configs.SQLite)
}
