// Package model 定义维修调度引擎的核心数据模型
package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PlanningBundle 一次调度运行的输入快照
type PlanningBundle struct {
	TStart       LocalTime     `json:"t_start"`
	TEnd         LocalTime     `json:"t_end"`
	WorkdayStart string        `json:"workday_start"` // HH:MM
	WorkdayEnd   string        `json:"workday_end"`   // HH:MM
	Workdays     []int         `json:"workdays"`      // 周一=0..周日=6
	Jobs         []*Job        `json:"jobs"`
	Equipment    []*Equipment  `json:"equipment"`
	Technicians  []*Technician `json:"technicians"`
	Tools        []*Tool       `json:"tools"`
	Materials    []*Material   `json:"materials"`
}

// Assignment 排程结果中的单条派工
// 一次性构造的不可变值对象，只携带下游需要的字段
type Assignment struct {
	JobID         string    `json:"job_id"`
	EquipmentID   string    `json:"equipment_id"`
	Start         LocalTime `json:"scheduled_start_time"`
	End           LocalTime `json:"scheduled_end_time"`
	TechnicianIDs []string  `json:"assigned_technicians"`
}

// DurationHours 返回派工时长（小时）
func (a *Assignment) DurationHours() float64 {
	return a.End.Time().Sub(a.Start.Time()).Hours()
}

// Rejection 被剔除工单及原因
type Rejection struct {
	JobID   string   `json:"job_id"`
	Reasons []string `json:"reason"`
}

// Schedule 一次调度运行的完整输出
type Schedule struct {
	RunID       uuid.UUID      `json:"run_id"`
	Strategy    string         `json:"strategy"`
	Assignments []Assignment   `json:"scheduled_jobs"`
	Rejections  []Rejection    `json:"unscheduled_jobs"`
	Statistics  *ScheduleStats `json:"statistics,omitempty"`
	Elapsed     time.Duration  `json:"elapsed_ns"`
}

// ScheduleStats 排程统计
type ScheduleStats struct {
	TotalJobs       int     `json:"total_jobs"`
	ScheduledJobs   int     `json:"scheduled_jobs"`
	RejectedJobs    int     `json:"rejected_jobs"`
	SchedulingRate  float64 `json:"scheduling_rate"` // 百分比
	MakespanMinutes float64 `json:"makespan_minutes"`
	Iterations      int     `json:"iterations,omitempty"` // 求解器迭代次数
}

// SortAssignments 按开始时间排序派工列表，开始时间相同时按工单ID
func SortAssignments(assignments []Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		si, sj := assignments[i].Start.Time(), assignments[j].Start.Time()
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return assignments[i].JobID < assignments[j].JobID
	})
}

// Makespan 计算最早开始到最晚结束的跨度
func Makespan(assignments []Assignment) time.Duration {
	if len(assignments) == 0 {
		return 0
	}
	earliest := assignments[0].Start.Time()
	latest := assignments[0].End.Time()
	for _, a := range assignments[1:] {
		if a.Start.Time().Before(earliest) {
			earliest = a.Start.Time()
		}
		if a.End.Time().After(latest) {
			latest = a.End.Time()
		}
	}
	return latest.Sub(earliest)
}
