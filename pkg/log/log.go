// Package log 提供服务统一的 zerolog logger.
//
// 控制台输出固定写 stderr，可选 JSON 或人类可读格式；启用 log.enable_file 时
// 额外写入 lumberjack 轮转文件，文件内始终是 JSON 行.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/dataviz/pkg/configs"
)

// ServiceName 写入每条日志的 service 字段.
const ServiceName = "dataviz"

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init 按当前配置初始化全局 logger，只生效一次.
func Init() {
	initOnce.Do(func() {
		cfg := configs.GetConfig()
		logger = New(cfg.Log, cfg.Server.Debug)
		log.Logger = logger

		if cfg.Server.Debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	})
}

// New 按日志配置构建 logger，debug 时附带调用位置与堆栈.
func New(cfg configs.LogConfig, debug bool) zerolog.Logger {
	SetLevel(cfg.Level)

	zctx := zerolog.New(newWriter(cfg)).With().Timestamp().Str("service", ServiceName)
	if debug {
		zctx = zctx.Caller().Stack()
	}

	return zctx.Logger()
}

func newWriter(cfg configs.LogConfig) io.Writer {
	var out io.Writer = os.Stderr
	if cfg.Format != configs.LogFormatJSON {
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.DateTime
		})
	}

	if !cfg.EnableFile {
		return out
	}

	return zerolog.MultiLevelWriter(out, &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// SetLevel 设置全局日志级别，非法值回退到 info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", level)

		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
}

// Logger 返回全局 logger，未初始化时先按当前配置初始化.
func Logger() *zerolog.Logger {
	Init()

	return &logger
}

// GinWriter 把 gin 的文本输出逐行转成 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	// Fatal/Panic 经 WithLevel 输出时不会退出进程，这里统一降为 error
	if level > zerolog.ErrorLevel && level < zerolog.NoLevel {
		level = zerolog.ErrorLevel
	}

	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.WithLevel(w.level).Str("source", "gin").Msg(line)
		}
	}

	return len(p), nil
}
