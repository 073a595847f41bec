// Package solver 提供维修排程求解器
// 四种策略实现同一接口，共享运行上下文与评分语义
package solver

import (
	"context"
	"time"

	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
)

// Solver 求解器接口
type Solver interface {
	// Solve 在运行上下文上生成排程方案
	Solve(ctx context.Context, p *plan.Context) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Assignments []model.Assignment `json:"assignments"`
	Rejections  []model.Rejection  `json:"rejections"`
	Statistics  *Statistics        `json:"statistics"`
	Duration    time.Duration      `json:"duration"`
	Success     bool               `json:"success"`
	Message     string             `json:"message,omitempty"`
}

// Statistics 求解统计
type Statistics struct {
	TotalJobs       int     `json:"total_jobs"`
	ScheduledJobs   int     `json:"scheduled_jobs"`
	RejectedJobs    int     `json:"rejected_jobs"`
	SchedulingRate  float64 `json:"scheduling_rate"`
	MakespanMinutes float64 `json:"makespan_minutes"`
	Iterations      int     `json:"iterations"`
	BestScore       float64 `json:"best_score,omitempty"`
}

// BuildStatistics 汇总求解统计
func BuildStatistics(total int, assignments []model.Assignment, rejections []model.Rejection) *Statistics {
	stats := &Statistics{
		TotalJobs:       total,
		ScheduledJobs:   len(assignments),
		RejectedJobs:    len(rejections),
		MakespanMinutes: model.Makespan(assignments).Minutes(),
	}
	if total > 0 {
		stats.SchedulingRate = float64(len(assignments)) / float64(total) * 100
	}
	return stats
}
