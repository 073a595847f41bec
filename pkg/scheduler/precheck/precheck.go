// Package precheck 提供与策略无关的工单可行性预检
// 预检是保守的：只剔除在任何策略下都不可能排定的工单
package precheck

import (
	"fmt"

	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/model"
)

// Run 对全部工单独立预检，返回可行工单与剔除列表
// 同一输入重复运行结果一致
func Run(bundle *model.PlanningBundle, cal *calendar.WorkCalendar) ([]*model.Job, []model.Rejection) {
	toolCaps := make(map[string]int, len(bundle.Tools))
	for _, t := range bundle.Tools {
		toolCaps[t.ToolID] = t.TotalQuantity
	}
	matCaps := make(map[string]int, len(bundle.Materials))
	for _, m := range bundle.Materials {
		matCaps[m.MaterialID] = m.TotalQuantity
	}
	dayLen := cal.DailyCapacity()

	var feasible []*model.Job
	var rejected []model.Rejection

	for _, job := range bundle.Jobs {
		var reasons []string

		for _, req := range job.RequiredTools {
			avail := toolCaps[req.ToolID]
			if req.Quantity > avail {
				reasons = append(reasons,
					fmt.Sprintf("Needs %d of tool %s, only %d available.", req.Quantity, req.ToolID, avail))
			}
		}

		for _, req := range job.RequiredMaterials {
			avail := matCaps[req.MaterialID]
			if req.Quantity > avail {
				reasons = append(reasons,
					fmt.Sprintf("Needs %d of material %s, only %d available.", req.Quantity, req.MaterialID, avail))
			}
		}

		// 技能预检要求至少有一名技师独立覆盖全部所需技能
		// 贪心策略内部的团队覆盖是更宽松的判定，不在此处使用
		if len(job.RequiredSkills) > 0 {
			covered := false
			for _, tech := range bundle.Technicians {
				if tech.CoversSkills(job.RequiredSkills) {
					covered = true
					break
				}
			}
			if !covered {
				reasons = append(reasons, "No matching technicians with required skills.")
			}
		}

		// 单窗口策略下的工时上限；多日策略仍可能排定超长工单
		if job.Duration() > dayLen {
			reasons = append(reasons,
				fmt.Sprintf("Duration %gh exceeds workday length %dh (%s).",
					job.DurationHours, int(dayLen.Hours()), cal.WindowString()))
		}

		if len(reasons) > 0 {
			rejected = append(rejected, model.Rejection{JobID: job.JobID, Reasons: reasons})
		} else {
			feasible = append(feasible, job)
		}
	}

	return feasible, rejected
}
