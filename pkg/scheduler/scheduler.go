// Package scheduler 在 gocron/v2 之上维护按名称管理的后台任务及其最近一次执行状态.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/yeisme/dataviz/pkg/log"
)

// ErrJobNotFound 指定名称的任务未注册.
var ErrJobNotFound = errors.New("scheduler: job not found")

// JobStatus 任务状态.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled" // 等待下一次触发
	StatusRunning   JobStatus = "running"   // 正在执行
	StatusError     JobStatus = "error"     // 最近一次执行失败
)

// JobInfo 任务信息快照，用于日志与 CLI 展示.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CronExpr    string    `json:"cron_expr"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Job 任务函数，返回的错误写入 JobInfo.Error.
type Job func(ctx context.Context) error

type entry struct {
	job  gocron.Job
	info JobInfo
}

// Scheduler 按名称管理 cron 任务.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewScheduler 创建调度器，需调用 Start 后任务才会触发.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:    s,
		logger:  log.Logger(),
		entries: make(map[string]*entry),
	}, nil
}

// AddCron 注册 cron 任务，同名任务同一时刻只运行一个实例，重叠的触发被顺延.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	j, err := s.cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.run, ctx, name, job),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	now := time.Now()
	next, _ := j.NextRun()

	s.entries[name] = &entry{
		job: j,
		info: JobInfo{
			ID:        j.ID().String(),
			Name:      name,
			CronExpr:  cronExpr,
			NextRun:   next,
			Status:    StatusScheduled,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("cron job added")

	return nil
}

// run 执行任务并记录状态，panic 被记为错误.
func (s *Scheduler) run(ctx context.Context, name string, job Job) {
	s.update(name, func(info *JobInfo) {
		info.Status = StatusRunning
		info.LastRun = time.Now()
	})

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in job: %v", r)
			}
		}()

		return job(ctx)
	}()

	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		s.update(name, func(info *JobInfo) {
			info.Status = StatusError
			info.Error = err.Error()
		})

		return
	}

	s.update(name, func(info *JobInfo) {
		info.Status = StatusScheduled
		info.Error = ""
		info.LastSuccess = time.Now()
	})
}

func (s *Scheduler) update(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		fn(&e.info)
		e.info.UpdatedAt = time.Now()
	}
}

// RunNow 立即执行一次任务，不影响原有调度；调度器需已启动.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return e.job.RunNow()
}

// RemoveJobByName 按名称移除任务.
func (s *Scheduler) RemoveJobByName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if err := s.cron.RemoveJob(e.job.ID()); err != nil {
		return err
	}

	delete(s.entries, name)
	s.logger.Info().Str("job", name).Msg("job removed")

	return nil
}

// GetJobInfoByName 返回任务信息的副本.
func (s *Scheduler) GetJobInfoByName(name string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return snapshot(e), nil
}

// GetJobInfos 返回所有任务信息，按名称排序.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, snapshot(e))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// snapshot 复制 JobInfo 并从 gocron 读取最新的下次触发时间.
func snapshot(e *entry) JobInfo {
	info := e.info
	if next, err := e.job.NextRun(); err == nil && !next.IsZero() {
		info.NextRun = next
	}

	return info
}

// Start 启动调度器.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("scheduler started")
	s.cron.Start()
}

// Shutdown 停止调度器并等待运行中的任务结束.
func (s *Scheduler) Shutdown() error {
	s.logger.Info().Msg("scheduler stopping")

	return s.cron.Shutdown()
}
