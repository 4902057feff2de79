package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/yeisme/dataviz/pkg/cache"
	"github.com/yeisme/dataviz/pkg/internal/model"
	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	"github.com/yeisme/dataviz/pkg/internal/types"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/tracing"
)

const (
	// DownloadPrefix 下载地址前缀.
	DownloadPrefix = "/upload/download/"

	catalogListKey     = "uploads:v1"
	DefaultRecordLimit = 100
	MaxRecordLimit     = 1000
)

// CatalogService 查询已导入的上传及其原始文件.
type CatalogService struct {
	files   filestore.Store
	records records.Store

	cache    *cache.Cache
	cacheTTL time.Duration
}

// CatalogOption 配置 CatalogService.
type CatalogOption func(*CatalogService)

// WithListCache 把上传列表缓存在 KV 中.
func WithListCache(c *cache.Cache, ttl time.Duration) CatalogOption {
	return func(s *CatalogService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// NewCatalogService 创建 CatalogService.
func NewCatalogService(files filestore.Store, recs records.Store, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{files: files, records: recs}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DownloadURL 返回文件的下载地址.
func DownloadURL(filename string) string {
	return DownloadPrefix + url.PathEscape(filename)
}

// sizeKB 字节数换算为 KB，保留两位小数.
func sizeKB(n int64) float64 {
	return math.Round(float64(n)/1024*100) / 100
}

// ListUploads 按导入顺序列出原始文件仍存在的上传.
func (s *CatalogService) ListUploads(ctx context.Context) ([]types.UploadListItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.ListUploads")
	defer span.End()

	if s.cache == nil {
		return s.listUploads(ctx)
	}

	items, err := cache.GetOrSet(ctx, s.cache, catalogListKey, func() ([]types.UploadListItem, error) {
		return s.listUploads(ctx)
	}, s.cacheTTL)
	tracing.RecordError(span, err)

	return items, err
}

func (s *CatalogService) listUploads(ctx context.Context) ([]types.UploadListItem, error) {
	uploads, err := s.records.ListUploads(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]types.UploadListItem, 0, len(uploads))

	for _, u := range uploads {
		size, err := s.files.Size(ctx, u.Filename)
		if errors.Is(err, filestore.ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", u.Filename, err)
		}

		items = append(items, types.UploadListItem{
			ID:          u.ID,
			Filename:    u.Filename,
			UploadedAt:  u.UploadedAt,
			SizeKB:      sizeKB(size),
			DownloadURL: DownloadURL(u.Filename),
			Status:      string(u.Status),
			RecordCount: u.RecordCount,
		})
	}

	return items, nil
}

// Invalidate 清除上传列表缓存.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, catalogListKey); err != nil {
		log.Logger().Warn().Err(err).Msg("invalidate upload list cache failed")
	}
}

// Download 打开原始文件，文件不存在或文件名非法时返回 ErrNotFound.
func (s *CatalogService) Download(ctx context.Context, filename string) (io.ReadCloser, *filestore.FileInfo, error) {
	if err := filestore.ValidateName(filename); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	rc, info, err := s.files.Open(ctx, filename)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	return rc, info, err
}

// GetUpload 返回上传详情.
func (s *CatalogService) GetUpload(ctx context.Context, id uint) (*types.UploadDetail, error) {
	u, err := s.records.GetUpload(ctx, id)
	if err != nil {
		return nil, mapRecordsErr(err)
	}

	return toDetail(u), nil
}

// ListRecords 按行号分页返回上传的数据行.
func (s *CatalogService) ListRecords(ctx context.Context, id uint, limit, offset int) (*types.RecordPage, error) {
	if _, err := s.records.GetUpload(ctx, id); err != nil {
		return nil, mapRecordsErr(err)
	}

	if limit <= 0 {
		limit = DefaultRecordLimit
	}

	limit = min(limit, MaxRecordLimit)
	offset = max(offset, 0)

	recs, total, err := s.records.ListRecords(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}

	page := &types.RecordPage{
		Records: make([]types.RecordItem, 0, len(recs)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}

	for _, r := range recs {
		page.Records = append(page.Records, types.RecordItem{RowIndex: r.RowIndex, Data: r.Data})
	}

	return page, nil
}

func mapRecordsErr(err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}

func toDetail(u *model.Upload) *types.UploadDetail {
	return &types.UploadDetail{
		ID:          u.ID,
		UserID:      u.UserID,
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
		Checksum:    u.Checksum,
		Status:      string(u.Status),
		RecordCount: u.RecordCount,
		Columns:     []string(u.Columns),
		Error:       u.Error,
		UploadedAt:  u.UploadedAt,
		UpdatedAt:   u.UpdatedAt,
		DownloadURL: DownloadURL(u.Filename),
	}
}

// ParseUploadID 解析路径中的上传 ID.
func ParseUploadID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: upload %q", ErrNotFound, raw)
	}

	return uint(n), nil
}
