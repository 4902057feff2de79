// Package records 是导入元数据 (Upload) 与数据行 (DataRecord) 的持久化层.
//
// Upload 行与 DataRecord 批次分两次提交：CreateUpload 先提交 pending 状态的 Upload，
// CreateRecords 在另一个事务中插入全部数据行并把状态改为 complete.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/dataviz/pkg/internal/model"
	dbc "github.com/yeisme/dataviz/pkg/internal/storage/db"
)

var (
	// ErrNotFound Upload 不存在.
	ErrNotFound   = errors.New("records: upload not found")
	// ErrNotPending Upload 已离开 pending 状态，状态不再改写.
	ErrNotPending = errors.New("records: upload is not pending")
)

// DefaultBatchSize CreateInBatches 的默认批大小.
const DefaultBatchSize = 500

// Store 导入记录存储.
type Store interface {
	CreateUpload(ctx context.Context, u *model.Upload) error
	// CreateRecords 在单个事务中写入全部数据行并把 Upload 标记为 complete，返回写入行数.
	CreateRecords(ctx context.Context, uploadID uint, recs []model.DataRecord) (int, error)
	// MarkFailed 与 MarkComplete 只改写 pending 状态的 Upload，否则返回 ErrNotPending.
	MarkFailed(ctx context.Context, uploadID uint, reason string) error
	MarkComplete(ctx context.Context, uploadID uint, count int) error
	GetUpload(ctx context.Context, id uint) (*model.Upload, error)
	// ListUploads 按创建顺序返回全部 Upload.
	ListUploads(ctx context.Context) ([]model.Upload, error)
	ListRecords(ctx context.Context, uploadID uint, limit, offset int) ([]model.DataRecord, int64, error)
	CountRecords(ctx context.Context, uploadID uint) (int64, error)
	ListStalePending(ctx context.Context, before time.Time) ([]model.Upload, error)
}

// GormStore 基于 gorm 的 Store 实现.
type GormStore struct {
	db        *gorm.DB
	batchSize int
}

// New 创建 GormStore，batchSize <= 0 时使用 DefaultBatchSize.
func New(client *dbc.Client, batchSize int) *GormStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &GormStore{db: client.DB, batchSize: batchSize}
}

// Migrate 创建或更新表结构.
func Migrate(ctx context.Context, client *dbc.Client) error {
	if err := client.WithContext(ctx).AutoMigrate(model.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

func (s *GormStore) CreateUpload(ctx context.Context, u *model.Upload) error {
	if u.Status == "" {
		u.Status = model.UploadPending
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create upload %s: %w", u.Filename, err)
	}

	return nil
}

func (s *GormStore) CreateRecords(ctx context.Context, uploadID uint, recs []model.DataRecord) (int, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range recs {
			recs[i].UploadID = uploadID
		}

		if len(recs) > 0 {
			if err := tx.CreateInBatches(recs, s.batchSize).Error; err != nil {
				return fmt.Errorf("insert records: %w", err)
			}
		}

		res := tx.Model(&model.Upload{}).Where("id = ?", uploadID).Updates(map[string]any{
			"status":       model.UploadComplete,
			"record_count": len(recs),
		})
		if res.Error != nil {
			return fmt.Errorf("complete upload: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, uploadID)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(recs), nil
}

func (s *GormStore) MarkFailed(ctx context.Context, uploadID uint, reason string) error {
	return s.setStatus(ctx, uploadID, map[string]any{
		"status": model.UploadFailed,
		"error":  reason,
	})
}

func (s *GormStore) MarkComplete(ctx context.Context, uploadID uint, count int) error {
	return s.setStatus(ctx, uploadID, map[string]any{
		"status":       model.UploadComplete,
		"record_count": count,
	})
}

// setStatus 以 status = pending 为条件更新，与并发的 CreateRecords 提交互不覆盖.
func (s *GormStore) setStatus(ctx context.Context, uploadID uint, fields map[string]any) error {
	db := s.db.WithContext(ctx)

	res := db.Model(&model.Upload{}).
		Where("id = ? AND status = ?", uploadID, model.UploadPending).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update upload %d: %w", uploadID, res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := db.Model(&model.Upload{}).Where("id = ?", uploadID).Count(&n).Error; err != nil {
		return fmt.Errorf("count upload %d: %w", uploadID, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, uploadID)
	}

	return fmt.Errorf("%w: %d", ErrNotPending, uploadID)
}

func (s *GormStore) GetUpload(ctx context.Context, id uint) (*model.Upload, error) {
	var u model.Upload

	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("get upload %d: %w", id, err)
	}

	return &u, nil
}

func (s *GormStore) ListUploads(ctx context.Context) ([]model.Upload, error) {
	var uploads []model.Upload
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&uploads).Error; err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	return uploads, nil
}

func (s *GormStore) ListRecords(ctx context.Context, uploadID uint, limit, offset int) ([]model.DataRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.DataRecord{}).Where("upload_id = ?", uploadID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	var recs []model.DataRecord

	err := s.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Order("row_index ASC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	return recs, total, nil
}

func (s *GormStore) CountRecords(ctx context.Context, uploadID uint) (int64, error) {
	var n int64

	err := s.db.WithContext(ctx).Model(&model.DataRecord{}).Where("upload_id = ?", uploadID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

func (s *GormStore) ListStalePending(ctx context.Context, before time.Time) ([]model.Upload, error) {
	var uploads []model.Upload

	err := s.db.WithContext(ctx).
		Where("status = ? AND uploaded_at < ?", model.UploadPending, before).
		Order("id ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}

	return uploads, nil
}
