package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/middleware"
	"github.com/yeisme/dataviz/pkg/scheduler"
)

const msgSchedulerUnavailable = "Scheduler is not running"

// schedulerFrom 取出调度器，未注入时直接返回 503.
func schedulerFrom(c *gin.Context) (*scheduler.Scheduler, bool) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msgSchedulerUnavailable})

		return nil, false
	}

	return sched, true
}

func jobError(c *gin.Context, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		abortError(c, http.StatusNotFound, "Job not found", err)

		return
	}

	abortError(c, http.StatusInternalServerError, "Job operation failed", err)
}

// SchedulerJobs 返回所有后台任务的状态.
//
//	@Summary	后台任务列表
//	@Tags		调度
//	@Produce	json
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Failure	503	{object}	types.ErrorResponse
//	@Router		/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerJob 返回单个任务的状态.
//
//	@Summary	后台任务详情
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务名"
//	@Success	200		{object}	scheduler.JobInfo
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/scheduler/jobs/{name} [get]
func SchedulerJob(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	info, err := sched.GetJobInfoByName(c.Param("name"))
	if err != nil {
		jobError(c, err)

		return
	}

	c.JSON(http.StatusOK, info)
}

// SchedulerRunJob 立即触发一次任务，例如手工对账 pending 上传.
//
//	@Summary	立即执行任务
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务名"
//	@Success	202		{object}	map[string]string
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	name := c.Param("name")
	if err := sched.RunNow(name); err != nil {
		jobError(c, err)

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "job " + name + " triggered"})
}

// SchedulerRemoveJob 移除任务，直到下次启动或配置重载前不再触发.
//
//	@Summary	移除任务
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务名"
//	@Success	200		{object}	map[string]string
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/scheduler/jobs/{name} [delete]
func SchedulerRemoveJob(c *gin.Context) {
	sched, ok := schedulerFrom(c)
	if !ok {
		return
	}

	if err := sched.RemoveJobByName(c.Param("name")); err != nil {
		jobError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job removed"})
}
