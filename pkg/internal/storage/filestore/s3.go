package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"

	"github.com/yeisme/dataviz/pkg/configs"
	nlog "github.com/yeisme/dataviz/pkg/log"
)

func init() {
	RegisterFactory(configs.FileStoreS3, func(ctx context.Context, cfg *configs.FileStoreConfig) (Store, error) {
		return NewS3(ctx, cfg.S3, configs.GetConfig().CircuitBreaker)
	})
}

// S3Store 基于 MinIO 的对象存储，所有远程调用经过熔断器.
type S3Store struct {
	cli    *minio.Client
	bucket string
	prefix string
	cb     *gobreaker.CircuitBreaker
}

// NewS3 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func NewS3(ctx context.Context, cfg configs.S3Config, cbCfg configs.CircuitBreakerConfig) (*S3Store, error) {
	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("dataviz", configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 filestore connected")

	return &S3Store{
		cli:    cli,
		bucket: cfg.BucketName,
		prefix: cfg.Prefix,
		cb:     newBreaker("filestore-s3", cbCfg),
	}, nil
}

// newBreaker 按配置创建熔断器，未启用时返回 nil.
func newBreaker(name string, cfg configs.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		// 对象不存在是正常结果，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nlog.Logger().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

func (s *S3Store) Kind() string { return string(configs.FileStoreS3) }

func (s *S3Store) objectKey(name string) string {
	return path.Join(s.prefix, name)
}

func (s *S3Store) do(fn func() (any, error)) (any, error) {
	if s.cb == nil {
		return fn()
	}

	return s.cb.Execute(fn)
}

// objectBody 返回对象长度；reader 不暴露 Len 时整体读入内存，单次 PUT 而不走分片上传.
func objectBody(r io.Reader) (io.Reader, int64, error) {
	if l, ok := r.(interface{ Len() int }); ok {
		return r, int64(l.Len()), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}

	return bytes.NewReader(data), int64(len(data)), nil
}

func (s *S3Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	key := s.objectKey(name)

	body, size, err := objectBody(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	_, err = s.do(func() (any, error) {
		return s.cli.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Store) stat(ctx context.Context, name string) (minio.ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return minio.ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	key := s.objectKey(name)

	v, err := s.do(func() (any, error) {
		info, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}

			return nil, fmt.Errorf("stat object %s: %w", key, err)
		}

		return info, nil
	})
	if err != nil {
		return minio.ObjectInfo{}, err
	}

	info, _ := v.(minio.ObjectInfo)

	return info, nil
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.stat(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *S3Store) Size(ctx context.Context, name string) (int64, error) {
	info, err := s.stat(ctx, name)
	if err != nil {
		return 0, err
	}

	return info.Size, nil
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, *FileInfo, error) {
	info, err := s.stat(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	v, err := s.do(func() (any, error) {
		return s.cli.GetObject(ctx, s.bucket, s.objectKey(name), minio.GetObjectOptions{})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get object %s: %w", name, err)
	}

	obj, _ := v.(*minio.Object)

	return obj, &FileInfo{
		Name:        name,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
	}, nil
}

// HealthCheck 检查 bucket 是否可访问.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.do(func() (any, error) {
		return s.cli.BucketExists(ctx, s.bucket)
	})

	return err
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
