package scheduler

import (
	"sort"

	"github.com/weixiu/weixiu/pkg/model"
)

// detectCycle 对工单前置依赖做深度优先着色检测
// 存在环时返回环上的工单ID（排序后），否则返回 nil
func detectCycle(jobs []*model.Job) []string {
	const (
		white = iota // 未访问
		gray         // 访问中
		black        // 已完成
	)

	byID := make(map[string]*model.Job, len(jobs))
	for _, j := range jobs {
		byID[j.JobID] = j
	}

	color := make(map[string]int, len(jobs))
	onStack := make(map[string]bool)
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		onStack[id] = true
		job := byID[id]
		for _, predID := range job.Precedence {
			pred, ok := byID[predID]
			if !ok {
				continue
			}
			switch color[pred.JobID] {
			case white:
				if visit(pred.JobID) {
					return true
				}
			case gray:
				for member, active := range onStack {
					if active {
						cycle = append(cycle, member)
					}
				}
				return true
			}
		}
		color[id] = black
		onStack[id] = false
		return false
	}

	for _, j := range jobs {
		if color[j.JobID] == white {
			if visit(j.JobID) {
				sort.Strings(cycle)
				return cycle
			}
		}
	}
	return nil
}
