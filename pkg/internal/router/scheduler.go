package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/internal/handle"
)

// RegisterSchedulerRoutes 注册后台任务管理路由：
//
//	GET    /scheduler/jobs            -> SchedulerJobs
//	GET    /scheduler/jobs/:name      -> SchedulerJob
//	POST   /scheduler/jobs/:name/run  -> SchedulerRunJob
//	DELETE /scheduler/jobs/:name      -> SchedulerRemoveJob
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/scheduler/jobs")
	{
		jobs.GET("", handle.SchedulerJobs)
		jobs.GET("/:name", handle.SchedulerJob)
		jobs.POST("/:name/run", handle.SchedulerRunJob)
		jobs.DELETE("/:name", handle.SchedulerRemoveJob)
	}
}
