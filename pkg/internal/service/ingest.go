// Package service 实现表格导入流程、上传目录查询与 pending 上传对账.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/model"
	"github.com/yeisme/dataviz/pkg/internal/storage/filestore"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	"github.com/yeisme/dataviz/pkg/internal/tabular"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/metrics"
	"github.com/yeisme/dataviz/pkg/queue"
	"github.com/yeisme/dataviz/pkg/tracing"
)

// IngestRequest 一次上传.
type IngestRequest struct {
	UserID      uint
	Filename    string
	ContentType string
	Body        io.Reader
}

// IngestResult 导入结果.
type IngestResult struct {
	UploadID    uint
	RecordCount int
	Filename    string
	FilePath    string
	Columns     []string
}

// IngestService 执行 保存 -> 解析 -> 规范化 -> 提交 的导入流程.
type IngestService struct {
	files   filestore.Store
	records records.Store
	events  *Events
	catalog *CatalogService
	cfg     configs.IngestConfig
}

// IngestOption 配置 IngestService.
type IngestOption func(*IngestService)

// WithEvents 设置事件发布器.
func WithEvents(e *Events) IngestOption {
	return func(s *IngestService) { s.events = e }
}

// WithCatalog 导入成功后清除该目录服务的列表缓存.
func WithCatalog(c *CatalogService) IngestOption {
	return func(s *IngestService) { s.catalog = c }
}

// NewIngestService 创建 IngestService.
func NewIngestService(files filestore.Store, recs records.Store, cfg configs.IngestConfig, opts ...IngestOption) *IngestService {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{configs.ContentTypeCSV, configs.ContentTypeXLSX}
	}

	s := &IngestService{files: files, records: recs, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// checkMediaType 解析声明的内容类型（允许 charset 等参数）并检查允许列表.
func (s *IngestService) checkMediaType(declared string) (string, error) {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, declared)
	}

	if !slices.Contains(s.cfg.AllowedContentTypes, mt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mt)
	}

	return mt, nil
}

// readBody 读取请求体，超过 MaxUploadBytes 时返回 ErrTooLarge.
func (s *IngestService) readBody(r io.Reader) ([]byte, error) {
	if s.cfg.MaxUploadBytes <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.cfg.MaxUploadBytes)
	}

	return data, nil
}

// Ingest 导入一个 CSV/XLSX 文件.
//
// 内容类型不被接受时不写入任何数据；文件一旦保存，即使后续解析失败也保留在存储中.
// Upload 行与数据行分两次提交，数据行失败时 Upload 被标记为 failed 并返回 *PartialCommitError.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "ingest.Ingest")
	span.SetAttributes(
		attribute.String("upload.filename", req.Filename),
		attribute.String("upload.content_type", req.ContentType),
		attribute.Int64("upload.user_id", int64(req.UserID)),
	)

	defer func() {
		metrics.IngestTotal.WithLabelValues(outcome(err)).Inc()
		tracing.RecordError(span, err)
		span.End()
	}()

	mediaType, err := s.checkMediaType(req.ContentType)
	if err != nil {
		return nil, err
	}

	if err := filestore.ValidateName(req.Filename); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilename, err)
	}

	data, err := s.readBody(req.Body)
	if err != nil {
		return nil, err
	}

	format := tabular.FormatFromFilename(req.Filename)
	file := queue.FileRef{
		Filename:    req.Filename,
		Size:        int64(len(data)),
		Checksum:    strconv.FormatUint(xxhash.Sum64(data), 16),
		ContentType: mediaType,
	}

	l := log.Logger().With().
		Str("filename", req.Filename).
		Str("format", format.String()).
		Int("bytes", len(data)).
		Logger()

	// 1. 保存原始文件
	_, saveSpan := tracing.StartSpan(ctx, "ingest.save")
	path, err := s.files.Save(ctx, req.Filename, bytes.NewReader(data))
	tracing.RecordError(saveSpan, err)
	saveSpan.End()

	if err != nil {
		return nil, fmt.Errorf("save %s: %w", req.Filename, err)
	}

	file.Path = path
	metrics.IngestBytes.Observe(float64(len(data)))
	s.events.UploadStored(ctx, queue.UploadStoredPayload{File: file, UserID: req.UserID})

	// 2. 解析与规范化
	norm, err := s.parse(ctx, format, data)
	if err != nil {
		l.Warn().Err(err).Msg("upload rejected")
		s.events.UploadRejected(ctx, queue.UploadRejectedPayload{File: file, UserID: req.UserID, Reason: err.Error()})

		return nil, err
	}

	// 3. 提交 Upload 行
	upload := &model.Upload{
		UserID:      req.UserID,
		Filename:    req.Filename,
		ContentType: mediaType,
		Size:        int64(len(data)),
		Checksum:    file.Checksum,
		StoragePath: path,
		Status:      model.UploadPending,
		Columns:     datatypes.JSONSlice[string](norm.Columns),
	}

	if err := s.records.CreateUpload(ctx, upload); err != nil {
		return nil, err
	}

	// 4. 提交数据行
	recs := make([]model.DataRecord, len(norm.Rows))
	for i, row := range norm.Rows {
		recs[i] = model.DataRecord{UploadID: upload.ID, RowIndex: i, Data: datatypes.JSONMap(row)}
	}

	_, commitSpan := tracing.StartSpan(ctx, "ingest.commit_records")
	commitSpan.SetAttributes(attribute.Int("records", len(recs)))
	n, err := s.records.CreateRecords(ctx, upload.ID, recs)
	tracing.RecordError(commitSpan, err)
	commitSpan.End()

	if err != nil {
		return nil, s.partialCommit(ctx, upload.ID, file, err)
	}

	s.catalog.Invalidate(ctx)

	elapsed := time.Since(start)
	metrics.IngestRecords.WithLabelValues(format.String()).Add(float64(n))
	metrics.IngestDuration.WithLabelValues(format.String()).Observe(elapsed.Seconds())

	s.events.UploadIngested(ctx, queue.UploadIngestedPayload{
		UploadID:    upload.ID,
		UserID:      req.UserID,
		File:        file,
		RecordCount: n,
		Columns:     norm.Columns,
		DurationMS:  elapsed.Milliseconds(),
	})

	l.Info().Uint("upload_id", upload.ID).Int("records", n).Dur("elapsed", elapsed).Msg("upload ingested")

	return &IngestResult{
		UploadID:    upload.ID,
		RecordCount: n,
		Filename:    req.Filename,
		FilePath:    path,
		Columns:     norm.Columns,
	}, nil
}

func (s *IngestService) parse(ctx context.Context, format tabular.Format, data []byte) (*tabular.Normalized, error) {
	_, span := tracing.StartSpan(ctx, "ingest.parse")
	defer span.End()

	table, err := tabular.Parse(format, data)
	if err != nil {
		tracing.RecordError(span, err)

		return nil, &ContentError{Err: err}
	}

	norm, err := tabular.Normalize(table, tabular.NormalizeOptions{Strict: s.cfg.StrictColumns})
	if err != nil {
		tracing.RecordError(span, err)

		return nil, &ContentError{Err: err}
	}

	span.SetAttributes(attribute.Int("rows", len(norm.Rows)), attribute.Int("columns", len(norm.Columns)))

	return norm, nil
}

// partialCommit 把 Upload 标记为 failed，保留失败状态供调用方观察.
func (s *IngestService) partialCommit(ctx context.Context, uploadID uint, file queue.FileRef, cause error) error {
	// 请求被取消时仍需落库
	mctx := context.WithoutCancel(ctx)

	if err := s.records.MarkFailed(mctx, uploadID, cause.Error()); err != nil {
		log.Logger().Error().Err(err).Uint("upload_id", uploadID).Msg("mark upload failed")
	}

	s.catalog.Invalidate(mctx)

	log.Logger().Error().Err(cause).Uint("upload_id", uploadID).Msg("records not committed")

	s.events.UploadFailed(mctx, queue.UploadFailedPayload{
		UploadID: uploadID,
		File:     file,
		Source:   "ingest",
		Error:    cause.Error(),
	})

	return &PartialCommitError{UploadID: uploadID, Err: cause}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrUnsupportedMediaType):
		return metrics.OutcomeMediaType
	case errors.Is(err, ErrUnsupportedContent):
		return metrics.OutcomeContent
	case errors.Is(err, ErrInvalidFilename):
		return metrics.OutcomeInvalidName
	case errors.Is(err, ErrPartialCommit):
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeError
	}
}
