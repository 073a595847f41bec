// Package solver 提供维修排程求解器
package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
)

const (
	// reasonPredecessor 前置工单未完成
	reasonPredecessor = "Predecessor jobs not completed."
	// reasonExhausted 资源或排程窗口耗尽
	reasonExhausted = "Resource constraints or scheduling window exceeded."

	// maxCombinationTechs 超过该规模的技师队伍改用集合覆盖启发式
	// 覆盖子集枚举对队伍规模是指数级的
	maxCombinationTechs = 12
)

// GreedySolver 贪心求解器
// 按设备优先级分组、组内按有效工时升序的确定性构造启发式
// 工时计算使用多日跨窗口策略
type GreedySolver struct {
	logger *logger.SchedulerLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "greedy"
}

// candidate 单个工单在当前游标下的试排结果
type candidate struct {
	job   *model.Job
	start time.Time
	end   time.Time
	techs []string
}

// Solve 使用贪心算法生成排程
func (s *GreedySolver) Solve(ctx context.Context, p *plan.Context) (*Result, error) {
	startTime := time.Now()
	p.Coverage = plan.CoverageTeam
	result := &Result{}

	groups, priorities := groupByPriority(p)
	currentTime := p.TStart
	iterations := 0

	for _, priority := range priorities {
		group := groups[priority]
		sortByEffectiveDuration(p, group)

		pending := append([]*model.Job(nil), group...)
		for currentTime.Before(p.TEnd) && len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			iterations++

			currentTime = p.Cal.NextWorkingInstant(currentTime)
			if !currentTime.Before(p.TEnd) {
				break
			}

			var feasible []candidate
			for _, job := range pending {
				if c, ok := s.tryJob(p, job, currentTime); ok {
					feasible = append(feasible, c)
				}
			}

			if len(feasible) > 0 {
				best := selectBest(p, feasible)
				a := p.Commit(best.job, best.start, best.end, best.techs)
				s.logger.JobCommitted(a.JobID, a.EquipmentID, best.start, best.end)
				pending = removeJob(pending, best.job.JobID)
				// 游标不前移，同一时刻可在不同设备上继续排定
				continue
			}

			// 当前时刻无可排工单，前移到最早的已排定结束时刻
			next, ok := earliestCommittedEnd(p, currentTime)
			if ok {
				currentTime = p.Cal.NextWorkingInstant(next)
			} else {
				currentTime = p.Cal.NextWorkingInstant(currentTime.Add(time.Minute))
			}
		}

		for _, job := range pending {
			reason := reasonExhausted
			if !p.IsReady(job) {
				reason = reasonPredecessor
			}
			result.Rejections = append(result.Rejections, model.Rejection{
				JobID:   job.JobID,
				Reasons: []string{reason},
			})
			s.logger.JobRejected(job.JobID, []string{reason})
		}
	}

	result.Assignments = p.Committed()
	result.Statistics = BuildStatistics(len(p.Jobs), result.Assignments, result.Rejections)
	result.Statistics.Iterations = iterations
	result.Duration = time.Since(startTime)
	result.Success = true
	result.Message = fmt.Sprintf("贪心排程完成，排定率 %.1f%%", result.Statistics.SchedulingRate)
	return result, nil
}

// tryJob 检查工单在当前游标下是否可排，并给出试排时段与技师团队
func (s *GreedySolver) tryJob(p *plan.Context, job *model.Job, now time.Time) (candidate, bool) {
	if !p.IsReady(job) {
		return candidate{}, false
	}

	start := p.Cal.NextWorkingInstant(now)
	end, ok := p.Cal.EndOfDuration(start, job.Duration(), calendar.PolicyMultiDay)
	if !ok || end.After(p.TEnd) {
		return candidate{}, false
	}

	equip := p.Equipment(job.EquipmentID)
	if equip == nil || !equip.IsAvailable(start, end) {
		return candidate{}, false
	}

	var available []*model.Technician
	for _, tech := range p.TechnicianList {
		if tech.IsAvailable(start, end) {
			available = append(available, tech)
		}
	}
	team := coveringTeam(available, job.RequiredSkills)
	if team == nil {
		return candidate{}, false
	}

	for _, req := range job.RequiredTools {
		tool := p.Tool(req.ToolID)
		if tool == nil || !tool.IsAvailable(start, end, req.Quantity) {
			return candidate{}, false
		}
	}
	for _, req := range job.RequiredMaterials {
		mat := p.Material(req.MaterialID)
		if mat == nil || !mat.IsAvailable(req.Quantity) {
			return candidate{}, false
		}
	}

	return candidate{job: job, start: start, end: end, techs: team}, true
}

// coveringTeam 在可用技师中寻找覆盖全部所需技能的最小团队
// 按子集规模递增枚举，找到即返回；大队伍退化为集合覆盖启发式
// 即使无技能要求也至少派一名技师
func coveringTeam(available []*model.Technician, required []string) []string {
	if len(available) == 0 {
		return nil
	}
	if len(available) > maxCombinationTechs {
		return setCoverTeam(available, required)
	}

	for size := 1; size <= len(available); size++ {
		if team := searchCombination(available, required, size); team != nil {
			return team
		}
	}
	return nil
}

// searchCombination 枚举固定规模的技师组合，返回首个覆盖全部技能的组合
func searchCombination(available []*model.Technician, required []string, size int) []string {
	indexes := make([]int, size)
	for i := range indexes {
		indexes[i] = i
	}

	for {
		skills := make(map[string]bool)
		for _, idx := range indexes {
			for _, s := range available[idx].Skills {
				skills[s] = true
			}
		}
		if model.SkillsCovered(skills, required) {
			team := make([]string, size)
			for i, idx := range indexes {
				team[i] = available[idx].TechID
			}
			return team
		}

		// 生成下一个组合
		i := size - 1
		for i >= 0 && indexes[i] == len(available)-size+i {
			i--
		}
		if i < 0 {
			return nil
		}
		indexes[i]++
		for j := i + 1; j < size; j++ {
			indexes[j] = indexes[j-1] + 1
		}
	}
}

// setCoverTeam 贪心集合覆盖：每轮挑选新覆盖技能最多的技师
func setCoverTeam(available []*model.Technician, required []string) []string {
	if len(required) == 0 {
		return []string{available[0].TechID}
	}

	uncovered := model.SkillSet(required)
	var team []string
	used := make(map[string]bool)

	for len(uncovered) > 0 {
		bestIdx, bestGain := -1, 0
		for i, tech := range available {
			if used[tech.TechID] {
				continue
			}
			gain := 0
			for _, s := range tech.Skills {
				if uncovered[s] {
					gain++
				}
			}
			if gain > bestGain {
				bestIdx, bestGain = i, gain
			}
		}
		if bestIdx < 0 {
			return nil
		}
		tech := available[bestIdx]
		used[tech.TechID] = true
		team = append(team, tech.TechID)
		for _, s := range tech.Skills {
			delete(uncovered, s)
		}
	}
	return team
}

// groupByPriority 按设备优先级分组，返回分组与升序的优先级列表
func groupByPriority(p *plan.Context) (map[int][]*model.Job, []int) {
	groups := make(map[int][]*model.Job)
	for _, job := range p.Jobs {
		priority := 0
		if equip := p.Equipment(job.EquipmentID); equip != nil {
			priority = equip.Priority
		}
		groups[priority] = append(groups[priority], job)
	}

	priorities := make([]int, 0, len(groups))
	for pr := range groups {
		priorities = append(priorities, pr)
	}
	sort.Ints(priorities)
	return groups, priorities
}

// sortByEffectiveDuration 组内按有效工时升序排序
// 有效工时 = 自身工时 + 全部前置工单工时（前置感知的最短加工时间规则）
func sortByEffectiveDuration(p *plan.Context, group []*model.Job) {
	effective := make(map[string]time.Duration, len(group))
	for _, job := range group {
		d := job.Duration()
		for _, predID := range job.Precedence {
			if pred := p.Job(predID); pred != nil {
				d += pred.Duration()
			}
		}
		effective[job.JobID] = d
	}
	sort.SliceStable(group, func(i, j int) bool {
		di, dj := effective[group[i].JobID], effective[group[j].JobID]
		if di != dj {
			return di < dj
		}
		return group[i].JobID < group[j].JobID
	})
}

// selectBest 负载均衡决胜：选择使全设备最大累计占用时长增量最小的工单
// 先对每个候选做一次模拟，再统一提交
func selectBest(p *plan.Context, feasible []candidate) candidate {
	cumulative := make(map[string]time.Duration, len(p.EquipmentList))
	for _, e := range p.EquipmentList {
		cumulative[e.EquipmentID] = 0
	}
	for _, a := range p.Committed() {
		cumulative[a.EquipmentID] += a.End.Time().Sub(a.Start.Time())
	}
	currentMax := maxDuration(cumulative)

	best := feasible[0]
	var leastIncrease time.Duration
	first := true
	for _, c := range feasible {
		simulated := cumulative[c.job.EquipmentID] + c.end.Sub(c.start)
		newMax := currentMax
		if simulated > newMax {
			newMax = simulated
		}
		increase := newMax - currentMax
		if first || increase < leastIncrease {
			best = c
			leastIncrease = increase
			first = false
		}
	}
	return best
}

// maxDuration 返回映射中的最大时长
func maxDuration(m map[string]time.Duration) time.Duration {
	var max time.Duration
	for _, d := range m {
		if d > max {
			max = d
		}
	}
	return max
}

// earliestCommittedEnd 返回晚于游标的最早已排定结束时刻
func earliestCommittedEnd(p *plan.Context, after time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, a := range p.Committed() {
		end := a.End.Time()
		if end.After(after) && (!found || end.Before(earliest)) {
			earliest = end
			found = true
		}
	}
	return earliest, found
}

// removeJob 从待排列表中移除工单
func removeJob(jobs []*model.Job, jobID string) []*model.Job {
	for i, j := range jobs {
		if j.JobID == jobID {
			return append(jobs[:i], jobs[i+1:]...)
		}
	}
	return jobs
}
