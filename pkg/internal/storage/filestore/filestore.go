// Package filestore 保存上传的原始文件，按文件名平铺寻址，同名文件直接覆盖.
//
// Example:
//
//	store, err := filestore.New(ctx, &configs.GetConfig().FileStore)
//	if err != nil {
//		// 处理错误
//	}
//
//	path, err := store.Save(ctx, "data.csv", bytes.NewReader(raw))
//	rc, info, err := store.Open(ctx, "data.csv")
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/rule"
)

var (
	// ErrNotFound 文件不存在.
	ErrNotFound = errors.New("filestore: file not found")
	// ErrInvalidName 文件名不能作为平铺存储键.
	ErrInvalidName = errors.New("filestore: invalid file name")
)

// FileInfo 已保存文件的元信息.
type FileInfo struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store 原始文件存储.
type Store interface {
	// Save 写入文件并返回存储路径，根目录不存在时自动创建.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Size 返回文件字节数，不存在时返回 ErrNotFound.
	Size(ctx context.Context, name string) (int64, error)
	// Open 打开文件用于下载，不存在时返回 ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, *FileInfo, error)
	Kind() string
	HealthCheck(ctx context.Context) error
}

// Factory 根据配置创建 Store.
type Factory func(ctx context.Context, cfg *configs.FileStoreConfig) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.FileStoreType]Factory{}
)

// RegisterFactory 注册存储后端.
func RegisterFactory(kind configs.FileStoreType, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[kind] = f
}

// GetRegisteredTypes 返回已注册的后端类型.
func GetRegisteredTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(factories))
	for k := range factories {
		types = append(types, string(k))
	}

	sort.Strings(types)

	return types
}

// New 按 cfg.Type 创建 Store.
func New(ctx context.Context, cfg *configs.FileStoreConfig) (Store, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported filestore type: %s", cfg.Type)
	}

	return f(ctx, cfg)
}

// ValidateName 检查文件名可以直接作为存储键.
func ValidateName(name string) error {
	if err := rule.ValidateVar(name, "upload_filename"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}
