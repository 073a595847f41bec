// Package stats 对排程结果做统计汇总与方案比较
package stats

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/model"
)

// TechnicianStats 单个技师的负载统计
type TechnicianStats struct {
	TechID          string  `json:"tech_id"`
	AssignedJobs    int     `json:"assigned_jobs"`
	WorkingHours    float64 `json:"working_hours"`
	UtilizationRate float64 `json:"utilization_rate"` // 百分比
	LaborCost       float64 `json:"labor_cost"`
}

// EquipmentStats 单台设备的占用统计
type EquipmentStats struct {
	EquipmentID     string  `json:"equipment_id"`
	ScheduledJobs   int     `json:"scheduled_jobs"`
	BusyHours       float64 `json:"busy_hours"`
	UtilizationRate float64 `json:"utilization_rate"` // 百分比
}

// Report 一次排程运行的统计报告
type Report struct {
	RunID          string            `json:"run_id"`
	Strategy       string            `json:"strategy"`
	TotalJobs      int               `json:"total_jobs"`
	ScheduledJobs  int               `json:"scheduled_jobs"`
	SchedulingRate float64           `json:"scheduling_rate"`
	MakespanHours  float64           `json:"makespan_hours"`
	TotalLaborCost float64           `json:"total_labor_cost"`
	LoadMean       float64           `json:"load_mean_hours"`
	LoadStdDev     float64           `json:"load_stddev_hours"` // 技师负载的公平性指标
	Technicians    []TechnicianStats `json:"technicians"`
	Equipment      []EquipmentStats  `json:"equipment"`
}

// Build 从排程结果生成统计报告
// 利用率按排程边界内的工作日历容量折算
func Build(schedule *model.Schedule, bundle *model.PlanningBundle, cal *calendar.WorkCalendar) *Report {
	report := &Report{
		RunID:         schedule.RunID.String(),
		Strategy:      schedule.Strategy,
		TotalJobs:     len(bundle.Jobs),
		ScheduledJobs: len(schedule.Assignments),
		MakespanHours: model.Makespan(schedule.Assignments).Hours(),
	}
	if report.TotalJobs > 0 {
		report.SchedulingRate = float64(report.ScheduledJobs) / float64(report.TotalJobs) * 100
	}

	capacity := 0.0
	for _, w := range cal.WorkingWindows(bundle.TStart.Time(), bundle.TEnd.Time()) {
		capacity += w.Duration().Hours()
	}

	techHours := make(map[string]float64)
	techJobs := make(map[string]int)
	equipHours := make(map[string]float64)
	equipJobs := make(map[string]int)
	for _, a := range schedule.Assignments {
		hours := a.DurationHours()
		for _, techID := range a.TechnicianIDs {
			techHours[techID] += hours
			techJobs[techID]++
		}
		equipHours[a.EquipmentID] += hours
		equipJobs[a.EquipmentID]++
	}

	var loads []float64
	for _, tech := range bundle.Technicians {
		hours := techHours[tech.TechID]
		ts := TechnicianStats{
			TechID:       tech.TechID,
			AssignedJobs: techJobs[tech.TechID],
			WorkingHours: hours,
			LaborCost:    hours * tech.HourlyRate,
		}
		if capacity > 0 {
			ts.UtilizationRate = hours / capacity * 100
		}
		report.TotalLaborCost += ts.LaborCost
		report.Technicians = append(report.Technicians, ts)
		loads = append(loads, hours)
	}
	sort.Slice(report.Technicians, func(i, j int) bool {
		return report.Technicians[i].TechID < report.Technicians[j].TechID
	})

	for _, eq := range bundle.Equipment {
		es := EquipmentStats{
			EquipmentID:   eq.EquipmentID,
			ScheduledJobs: equipJobs[eq.EquipmentID],
			BusyHours:     equipHours[eq.EquipmentID],
		}
		if capacity > 0 {
			es.UtilizationRate = es.BusyHours / capacity * 100
		}
		report.Equipment = append(report.Equipment, es)
	}
	sort.Slice(report.Equipment, func(i, j int) bool {
		return report.Equipment[i].EquipmentID < report.Equipment[j].EquipmentID
	})

	if len(loads) > 0 {
		report.LoadMean = stat.Mean(loads, nil)
		if len(loads) > 1 {
			report.LoadStdDev = stat.StdDev(loads, nil)
		}
	}
	return report
}

// Comparison 两份排程方案的对比结论
type Comparison struct {
	Left          string  `json:"left_strategy"`
	Right         string  `json:"right_strategy"`
	RateDelta     float64 `json:"scheduling_rate_delta"`
	MakespanDelta float64 `json:"makespan_hours_delta"`
	CostDelta     float64 `json:"labor_cost_delta"`
	Winner        string  `json:"winner"`
}

// Compare 比较两份统计报告
// 排定率优先，其次 makespan，再次人工成本
func Compare(left, right *Report) *Comparison {
	c := &Comparison{
		Left:          left.Strategy,
		Right:         right.Strategy,
		RateDelta:     left.SchedulingRate - right.SchedulingRate,
		MakespanDelta: left.MakespanHours - right.MakespanHours,
		CostDelta:     left.TotalLaborCost - right.TotalLaborCost,
	}
	switch {
	case c.RateDelta > 0:
		c.Winner = left.Strategy
	case c.RateDelta < 0:
		c.Winner = right.Strategy
	case c.MakespanDelta < 0:
		c.Winner = left.Strategy
	case c.MakespanDelta > 0:
		c.Winner = right.Strategy
	case c.CostDelta < 0:
		c.Winner = left.Strategy
	case c.CostDelta > 0:
		c.Winner = right.Strategy
	default:
		c.Winner = "tie"
	}
	return c
}

// GroupByDay 按日期聚合派工，便于日视图展示
func GroupByDay(assignments []model.Assignment) map[string][]model.Assignment {
	byDay := make(map[string][]model.Assignment)
	for _, a := range assignments {
		day := a.Start.Time().Format("2006-01-02")
		byDay[day] = append(byDay[day], a)
	}
	for day := range byDay {
		model.SortAssignments(byDay[day])
	}
	return byDay
}

// HorizonDays 排程边界覆盖的天数
func HorizonDays(tStart, tEnd time.Time) int {
	return int(tEnd.Sub(tStart).Hours()/24 + 0.999)
}
