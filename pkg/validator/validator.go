// Package validator 校验排程输出是否满足资源与依赖约束
// 供测试与上线前的结果审计使用
package validator

import (
	"fmt"
	"math"
	"sort"

	"github.com/weixiu/weixiu/pkg/model"
)

// Violation 一条约束违反记录
type Violation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Validate 对排程结果做全量约束检查，返回全部违反记录
func Validate(schedule *model.Schedule, bundle *model.PlanningBundle) []Violation {
	var violations []Violation
	violations = append(violations, checkDurations(schedule, bundle)...)
	violations = append(violations, checkEquipmentOverlap(schedule)...)
	violations = append(violations, checkTechnicianOverlap(schedule)...)
	violations = append(violations, checkToolCapacity(schedule, bundle)...)
	violations = append(violations, checkMaterialBudget(schedule, bundle)...)
	violations = append(violations, checkPrecedence(schedule, bundle)...)
	return violations
}

// checkDurations 派工时长必须不小于工单工时
// 多日跨窗口排程的占用时长会大于净工时
func checkDurations(schedule *model.Schedule, bundle *model.PlanningBundle) []Violation {
	jobs := make(map[string]*model.Job, len(bundle.Jobs))
	for _, j := range bundle.Jobs {
		jobs[j.JobID] = j
	}

	var violations []Violation
	for _, a := range schedule.Assignments {
		job, ok := jobs[a.JobID]
		if !ok {
			violations = append(violations, Violation{
				Kind:    "unknown_job",
				Message: fmt.Sprintf("派工引用了不存在的工单 %s", a.JobID),
			})
			continue
		}
		if a.DurationHours()+1e-9 < job.DurationHours {
			violations = append(violations, Violation{
				Kind: "duration",
				Message: fmt.Sprintf("工单 %s 占用时长 %.2fh 小于所需工时 %.2fh",
					a.JobID, a.DurationHours(), job.DurationHours),
			})
		}
	}
	return violations
}

// checkEquipmentOverlap 同一设备的派工时段互不重叠
func checkEquipmentOverlap(schedule *model.Schedule) []Violation {
	byEquip := make(map[string][]model.Assignment)
	for _, a := range schedule.Assignments {
		byEquip[a.EquipmentID] = append(byEquip[a.EquipmentID], a)
	}

	var violations []Violation
	for equipID, group := range byEquip {
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				if overlaps(group[i], group[j]) {
					violations = append(violations, Violation{
						Kind: "equipment_overlap",
						Message: fmt.Sprintf("设备 %s 上的工单 %s 与 %s 时段重叠",
							equipID, group[i].JobID, group[j].JobID),
					})
				}
			}
		}
	}
	return violations
}

// checkTechnicianOverlap 同一技师的派工时段互不重叠
func checkTechnicianOverlap(schedule *model.Schedule) []Violation {
	byTech := make(map[string][]model.Assignment)
	for _, a := range schedule.Assignments {
		for _, techID := range a.TechnicianIDs {
			byTech[techID] = append(byTech[techID], a)
		}
	}

	var violations []Violation
	for techID, group := range byTech {
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				if overlaps(group[i], group[j]) {
					violations = append(violations, Violation{
						Kind: "technician_overlap",
						Message: fmt.Sprintf("技师 %s 的工单 %s 与 %s 时段重叠",
							techID, group[i].JobID, group[j].JobID),
					})
				}
			}
		}
	}
	return violations
}

// checkToolCapacity 任一时刻重叠占用的工具数量不超过总量
// 在每个派工开始时刻做事件扫描
func checkToolCapacity(schedule *model.Schedule, bundle *model.PlanningBundle) []Violation {
	jobs := make(map[string]*model.Job, len(bundle.Jobs))
	for _, j := range bundle.Jobs {
		jobs[j.JobID] = j
	}
	caps := make(map[string]int, len(bundle.Tools))
	for _, t := range bundle.Tools {
		caps[t.ToolID] = t.TotalQuantity
	}

	type usage struct {
		a        model.Assignment
		quantity int
	}
	byTool := make(map[string][]usage)
	for _, a := range schedule.Assignments {
		job, ok := jobs[a.JobID]
		if !ok {
			continue
		}
		for _, req := range job.RequiredTools {
			byTool[req.ToolID] = append(byTool[req.ToolID], usage{a: a, quantity: req.Quantity})
		}
	}

	var violations []Violation
	for toolID, usages := range byTool {
		sort.Slice(usages, func(i, j int) bool {
			return usages[i].a.Start.Time().Before(usages[j].a.Start.Time())
		})
		for i := range usages {
			point := usages[i].a.Start.Time()
			inUse := 0
			for _, u := range usages {
				if !point.Before(u.a.Start.Time()) && point.Before(u.a.End.Time()) {
					inUse += u.quantity
				}
			}
			if inUse > caps[toolID] {
				violations = append(violations, Violation{
					Kind: "tool_capacity",
					Message: fmt.Sprintf("工具 %s 在 %s 被占用 %d 件，超过总量 %d",
						toolID, point.Format(model.TimeLayout), inUse, caps[toolID]),
				})
			}
		}
	}
	return violations
}

// checkMaterialBudget 已排工单的物料总消耗不超过库存
func checkMaterialBudget(schedule *model.Schedule, bundle *model.PlanningBundle) []Violation {
	jobs := make(map[string]*model.Job, len(bundle.Jobs))
	for _, j := range bundle.Jobs {
		jobs[j.JobID] = j
	}
	caps := make(map[string]int, len(bundle.Materials))
	for _, m := range bundle.Materials {
		caps[m.MaterialID] = m.TotalQuantity
	}

	demand := make(map[string]float64)
	for _, a := range schedule.Assignments {
		job, ok := jobs[a.JobID]
		if !ok {
			continue
		}
		for _, req := range job.RequiredMaterials {
			demand[req.MaterialID] += float64(req.Quantity)
		}
	}

	var violations []Violation
	for matID, used := range demand {
		if used > float64(caps[matID])+math.SmallestNonzeroFloat64 {
			violations = append(violations, Violation{
				Kind: "material_budget",
				Message: fmt.Sprintf("物料 %s 总消耗 %.0f 超过库存 %d",
					matID, used, caps[matID]),
			})
		}
	}
	return violations
}

// checkPrecedence 前置工单必须在后继开始前结束，且同样被排定
func checkPrecedence(schedule *model.Schedule, bundle *model.PlanningBundle) []Violation {
	jobs := make(map[string]*model.Job, len(bundle.Jobs))
	for _, j := range bundle.Jobs {
		jobs[j.JobID] = j
	}
	scheduled := make(map[string]model.Assignment, len(schedule.Assignments))
	for _, a := range schedule.Assignments {
		scheduled[a.JobID] = a
	}

	var violations []Violation
	for _, a := range schedule.Assignments {
		job, ok := jobs[a.JobID]
		if !ok {
			continue
		}
		for _, predID := range job.Precedence {
			pred, ok := scheduled[predID]
			if !ok {
				violations = append(violations, Violation{
					Kind: "precedence",
					Message: fmt.Sprintf("工单 %s 已排定但其前置工单 %s 未排定",
						a.JobID, predID),
				})
				continue
			}
			if pred.End.Time().After(a.Start.Time()) {
				violations = append(violations, Violation{
					Kind: "precedence",
					Message: fmt.Sprintf("工单 %s 在前置工单 %s 结束前开始",
						a.JobID, predID),
				})
			}
		}
	}
	return violations
}

// overlaps 检查两条派工的时段是否重叠
func overlaps(a, b model.Assignment) bool {
	return a.Start.Time().Before(b.End.Time()) && b.Start.Time().Before(a.End.Time())
}
