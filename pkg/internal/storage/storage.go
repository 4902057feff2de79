// Package storage 聚合导入服务用到的全部存储资源：数据库、文件存储、消息队列和 KV.
//
// Example:
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//	    // 处理错误
//	}
//	defer mgr.Close()
//
//	recs := mgr.Records()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/dataviz/pkg/configs"
	dbc "github.com/yeisme/dataviz/pkg/internal/storage/db"
	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	kvc "github.com/yeisme/dataviz/pkg/internal/storage/kv"
	mqc "github.com/yeisme/dataviz/pkg/internal/storage/mq"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	nlog "github.com/yeisme/dataviz/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB    *dbc.Client
	Files filestore.Store
	MQ    *mqc.Client
	// KV 仅在启用列表缓存时初始化.
	KV *kvc.Client

	records *records.GormStore
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 初始化全局存储管理器，重复调用只返回已初始化实例.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = New(ctx, cfg)
	})

	return mgr, mgrErr
}

// New 按配置创建存储管理器，任一组件失败时关闭已打开的资源.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	db, err := dbc.New(ctx, &cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	m.DB = db

	if cfg.DB.AutoMigrate {
		if err := records.Migrate(ctx, db); err != nil {
			_ = m.Close()

			return nil, err
		}
	}

	m.records = records.New(db, cfg.Ingest.BatchSize)

	if m.Files, err = filestore.New(ctx, &cfg.FileStore); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init filestore: %w", err)
	}

	var mqOpts []mqc.Option
	if cfg.Metrics.Enabled {
		mqOpts = append(mqOpts, mqc.WithMetrics(prometheus.DefaultRegisterer))
	}

	if m.MQ, err = mqc.New(ctx, &cfg.MQ, mqOpts...); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init mq: %w", err)
	}

	if cfg.Catalog.Cache.Enabled {
		if m.KV, err = kvc.NewKVClient(ctx, &cfg.KV); err != nil {
			_ = m.Close()

			return nil, fmt.Errorf("init kv: %w", err)
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("filestore", m.Files.Kind()).
		Str("mq", string(m.MQ.Kind())).
		Bool("kv", m.KV != nil).
		Msg("storage manager initialized")

	return m, nil
}

// Records 返回导入记录存储.
func (m *Manager) Records() records.Store {
	return m.records
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetKVClient 获取 KV 客户端，未启用时为 nil.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// Close 关闭所有资源.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
