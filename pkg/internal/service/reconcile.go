package service

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/storage/records"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/metrics"
	"github.com/yeisme/dataviz/pkg/queue"
	"github.com/yeisme/dataviz/pkg/tracing"
)

// InterruptedReason 中断的导入被标记为 failed 时记录的原因.
const InterruptedReason = "ingestion interrupted"

// ReconcileReport 一次对账的结果.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	// Skipped 对账期间已被导入流程提交或标记的上传.
	Skipped   int `json:"skipped"`
}

// ReconcileService 处理长时间停留在 pending 的上传.
type ReconcileService struct {
	records records.Store
	events  *Events
	catalog *CatalogService
	grace   time.Duration
	now     func() time.Time
}

// ReconcileOption 配置 ReconcileService.
type ReconcileOption func(*ReconcileService)

// WithReconcileCatalog 状态变更后失效列表缓存.
func WithReconcileCatalog(c *CatalogService) ReconcileOption {
	return func(s *ReconcileService) { s.catalog = c }
}

// NewReconcileService 创建 ReconcileService，grace 为 pending 的最长容忍时间，<= 0 时使用默认值.
func NewReconcileService(recs records.Store, events *Events, grace time.Duration, opts ...ReconcileOption) *ReconcileService {
	if grace <= 0 {
		grace = configs.DefaultPendingGrace
	}

	s := &ReconcileService{records: recs, events: events, grace: grace, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run 执行一次对账.
//
// 已有数据行的 pending 上传补记为 complete，没有数据行的标记为 failed.
// 状态更新以 pending 为条件，期间已离开 pending 的上传计入 Skipped.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Run")
	defer span.End()

	report, err := s.run(ctx)
	if report != nil && report.Completed+report.Failed > 0 {
		s.catalog.Invalidate(context.WithoutCancel(ctx))
	}

	if err != nil {
		tracing.RecordError(span, err)
	}

	return report, err
}

func (s *ReconcileService) run(ctx context.Context) (*ReconcileReport, error) {
	stale, err := s.records.ListStalePending(ctx, s.now().Add(-s.grace))
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Checked: len(stale)}
	l := log.Logger()

	for _, u := range stale {
		n, err := s.records.CountRecords(ctx, u.ID)
		if err != nil {
			return report, err
		}

		if n > 0 {
			err := s.records.MarkComplete(ctx, u.ID, int(n))
			if errors.Is(err, records.ErrNotPending) {
				report.Skipped++

				continue
			}

			if err != nil {
				return report, err
			}

			report.Completed++
			metrics.ReconcileTotal.WithLabelValues("completed").Inc()
			l.Info().Uint("upload_id", u.ID).Int64("records", n).Msg("pending upload completed")

			continue
		}

		err = s.records.MarkFailed(ctx, u.ID, InterruptedReason)
		if errors.Is(err, records.ErrNotPending) {
			report.Skipped++
			l.Debug().Uint("upload_id", u.ID).Msg("upload left pending before reconcile")

			continue
		}

		if err != nil {
			return report, err
		}

		report.Failed++
		metrics.ReconcileTotal.WithLabelValues("failed").Inc()
		l.Warn().Uint("upload_id", u.ID).Str("filename", u.Filename).Msg("pending upload marked failed")

		s.events.UploadFailed(ctx, queue.UploadFailedPayload{
			UploadID: u.ID,
			File: queue.FileRef{
				Filename:    u.Filename,
				Path:        u.StoragePath,
				Size:        u.Size,
				Checksum:    u.Checksum,
				ContentType: u.ContentType,
			},
			Source: "reconcile",
			Error:  InterruptedReason,
		})
	}

	return report, nil
}
