package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/scheduler"
)

const schedulerKey = "scheduler"

// SchedulerMiddleware 把调度器放入 gin.Context，供任务管理接口读取.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched != nil {
			c.Set(schedulerKey, sched)
		}

		c.Next()
	}
}

// GetScheduler 返回注入的调度器，未注入时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	sched, _ := c.Get(schedulerKey)
	s, _ := sched.(*scheduler.Scheduler)

	return s
}
