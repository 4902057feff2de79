// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"errors"

	"github.com/yeisme/dataviz/pkg/configs"
	"github.com/yeisme/dataviz/pkg/internal/service"
	"github.com/yeisme/dataviz/pkg/log"
	"github.com/yeisme/dataviz/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 按 ingest.reconcile_cron 对账长时间停留在 pending 的上传
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, rec *service.ReconcileService, cfg configs.IngestConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if rec == nil {
		return errors.New("reconcile service is nil")
	}

	cronExpr := cfg.ReconcileCron
	if cronExpr == "" {
		cronExpr = configs.DefaultReconcileCron
	}

	return sched.AddCron(ctx, JobReconcilePending, cronExpr, func(ctx context.Context) error {
		return runReconcile(ctx, rec)
	})
}

// RunStartupJobs 在调度器启动后执行一次 ingest.reconcile_on_start 要求的对账.
func RunStartupJobs(sched *scheduler.Scheduler, cfg configs.IngestConfig) error {
	if !cfg.ReconcileOnStart {
		return nil
	}

	return sched.RunNow(JobReconcilePending)
}

// runReconcile 执行一次 pending 上传对账。
func runReconcile(ctx context.Context, rec *service.ReconcileService) error {
	l := log.Logger().With().Str("job", JobReconcilePending).Logger()

	report, err := rec.Run(ctx)
	if err != nil {
		return err
	}

	if report.Checked > 0 {
		l.Info().
			Int("checked", report.Checked).
			Int("completed", report.Completed).
			Int("failed", report.Failed).
			Msg("reconciled pending uploads")
	}

	return nil
}
