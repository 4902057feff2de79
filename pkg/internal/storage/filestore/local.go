package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yeisme/dataviz/pkg/configs"
	nlog "github.com/yeisme/dataviz/pkg/log"
)

func init() {
	RegisterFactory(configs.FileStoreLocal, func(_ context.Context, cfg *configs.FileStoreConfig) (Store, error) {
		return NewLocal(cfg.Local.Root)
	})
}

// LocalStore 基于 afero 的本地目录存储.
type LocalStore struct {
	fs   afero.Fs
	root string
}

// NewLocal 在操作系统目录 root 下创建存储，root 不存在时创建.
func NewLocal(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve filestore root %s: %w", root, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create filestore root %s: %w", abs, err)
	}

	nlog.Logger().Info().Str("root", abs).Msg("local filestore ready")

	return NewLocalWithFs(afero.NewBasePathFs(afero.NewOsFs(), abs), abs), nil
}

// NewLocalWithFs 使用给定的 afero.Fs，root 仅用于生成返回路径；测试中可传入 afero.NewMemMapFs().
func NewLocalWithFs(fsys afero.Fs, root string) *LocalStore {
	return &LocalStore{fs: fsys, root: root}
}

func (s *LocalStore) Kind() string { return string(configs.FileStoreLocal) }

// Save 先写临时文件再重命名，读者不会看到写了一半的文件.
func (s *LocalStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll("/", 0o755); err != nil {
		return "", fmt.Errorf("create filestore root: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, "/", ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)

		return "", fmt.Errorf("write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)

		return "", fmt.Errorf("close %s: %w", name, err)
	}

	if err := s.fs.Rename(tmpName, localPath(name)); err != nil {
		_ = s.fs.Remove(tmpName)

		return "", fmt.Errorf("rename %s: %w", name, err)
	}

	return filepath.Join(s.root, name), nil
}

func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, nil
	}

	info, err := s.fs.Stat(localPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}

	return !info.IsDir(), nil
}

func (s *LocalStore) Size(_ context.Context, name string) (int64, error) {
	info, err := s.stat(name)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, *FileInfo, error) {
	info, err := s.stat(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(localPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}

	return f, &FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// HealthCheck 确认根目录可访问.
func (s *LocalStore) HealthCheck(_ context.Context) error {
	if _, err := s.fs.Stat("/"); err != nil {
		return fmt.Errorf("filestore root unavailable: %w", err)
	}

	return nil
}

func (s *LocalStore) stat(name string) (fs.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	info, err := s.fs.Stat(localPath(name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	return info, nil
}

// localPath 文件在 afero.Fs 中的路径，根目录下平铺.
func localPath(name string) string {
	return "/" + name
}
