package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/weixiu/weixiu/pkg/errors"
	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
)

// 目标函数权重：makespan 主导，天数次之，开始时刻之和最后
const (
	weightMakespan = 1 << 20
	weightDaysUsed = 1 << 10
)

// ConstraintSolver 精确求解器
// 在离散化的分钟级模型上做分支定界搜索，排程全部工单或报告不可行
// 单技师承担策略：每个工单恰好派一名独立覆盖全部技能的技师
type ConstraintSolver struct {
	timeout time.Duration
	workers int
	logger  *logger.SchedulerLogger
}

// NewConstraintSolver 创建精确求解器
func NewConstraintSolver(timeout time.Duration, workers int) *ConstraintSolver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &ConstraintSolver{
		timeout: timeout,
		workers: workers,
		logger:  logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *ConstraintSolver) Name() string {
	return "constraint"
}

// jobVar 单个工单的决策变量域
type jobVar struct {
	job     *model.Job
	dur     time.Duration
	windows []model.TimeRange // 放得下整个工时的候选窗口，已裁剪到排程边界
	techs   []string          // 独立覆盖全部技能的候选技师
}

// placement 一次落位
type placement struct {
	jobID  string
	start  time.Time
	end    time.Time
	techID string
}

// solution 一组完整落位及其目标值
type solution struct {
	placements []placement
	objective  int64
}

// Solve 构建模型并运行分支定界组合搜索
func (s *ConstraintSolver) Solve(ctx context.Context, p *plan.Context) (*Result, error) {
	startTime := time.Now()
	p.Coverage = plan.CoverageSingle

	vars, err := s.buildModel(p)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	best, iterations := s.searchPortfolio(runCtx, p, vars)
	if best == nil {
		if ctx.Err() == nil && runCtx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrSolverTimeout
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.NoFeasibleSolution("搜索耗尽仍未找到满足全部约束的排程")
	}

	sort.Slice(best.placements, func(i, j int) bool {
		if !best.placements[i].start.Equal(best.placements[j].start) {
			return best.placements[i].start.Before(best.placements[j].start)
		}
		return best.placements[i].jobID < best.placements[j].jobID
	})
	for _, pl := range best.placements {
		job := p.Job(pl.jobID)
		p.Commit(job, pl.start, pl.end, []string{pl.techID})
		s.logger.JobCommitted(pl.jobID, job.EquipmentID, pl.start, pl.end)
	}

	result := &Result{
		Assignments: p.Committed(),
		Statistics:  BuildStatistics(len(p.Jobs), p.Committed(), nil),
		Duration:    time.Since(startTime),
		Success:     true,
		Message:     fmt.Sprintf("精确求解完成，目标值 %d", best.objective),
	}
	result.Statistics.Iterations = iterations
	result.Statistics.BestScore = float64(best.objective)
	return result, nil
}

// buildModel 为每个工单构造候选窗口与候选技师
// 任一工单的决策域为空即可证明整体不可行
func (s *ConstraintSolver) buildModel(p *plan.Context) ([]*jobVar, error) {
	// 物料总量是全局预算，先做聚合检查
	demand := make(map[string]int)
	for _, job := range p.Jobs {
		for _, req := range job.RequiredMaterials {
			demand[req.MaterialID] += req.Quantity
		}
	}
	for matID, total := range demand {
		mat := p.Material(matID)
		if mat == nil || total > mat.TotalQuantity {
			return nil, errors.NoFeasibleSolution(
				fmt.Sprintf("物料 %s 的总需求 %d 超过库存", matID, total))
		}
	}

	allWindows := p.Cal.WorkingWindows(p.TStart, p.TEnd)
	if len(allWindows) == 0 {
		return nil, errors.EmptyCalendar(
			p.TStart.Format(model.TimeLayout), p.TEnd.Format(model.TimeLayout))
	}

	vars := make([]*jobVar, 0, len(p.Jobs))
	for _, job := range p.Jobs {
		v := &jobVar{job: job, dur: job.Duration()}

		for _, w := range allWindows {
			if w.Duration() >= v.dur {
				v.windows = append(v.windows, w)
			}
		}
		if len(v.windows) == 0 {
			return nil, errors.NoFeasibleSolution(
				fmt.Sprintf("工单 %s 的工时 %gh 放不进任何工作窗口", job.JobID, job.DurationHours))
		}

		for _, tech := range p.EligibleTechnicians(job) {
			v.techs = append(v.techs, tech.TechID)
		}
		if len(v.techs) == 0 {
			return nil, errors.NoFeasibleSolution(
				fmt.Sprintf("没有技师能独立承担工单 %s", job.JobID))
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// searchPortfolio 并行运行多个随机化搜索线程，共享当前最优解
func (s *ConstraintSolver) searchPortfolio(ctx context.Context, p *plan.Context, vars []*jobVar) (*solution, int) {
	var mu sync.Mutex
	var best *solution
	iterations := 0

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			local := 0
			for ctx.Err() == nil {
				local++
				order := randomTopoOrder(vars, rng)
				if order == nil {
					break
				}
				mu.Lock()
				bound := int64(-1)
				if best != nil {
					bound = best.objective
				}
				mu.Unlock()

				sol := placeOrder(p, order, rng, bound)
				if sol == nil {
					continue
				}
				mu.Lock()
				if best == nil || sol.objective < best.objective {
					best = sol
					s.logger.BestScore(s.Name(), local, float64(sol.objective))
				}
				mu.Unlock()
			}
			mu.Lock()
			iterations += local
			mu.Unlock()
		}(time.Now().UnixNano() + int64(w)*7919)
	}
	wg.Wait()
	return best, iterations
}

// randomTopoOrder 生成尊重前置依赖的随机派工顺序
// 存在环时返回 nil（上层已在编排阶段拒绝成环输入）
func randomTopoOrder(vars []*jobVar, rng *rand.Rand) []*jobVar {
	inCtx := make(map[string]bool, len(vars))
	for _, v := range vars {
		inCtx[v.job.JobID] = true
	}
	indegree := make(map[string]int, len(vars))
	successors := make(map[string][]*jobVar)
	byID := make(map[string]*jobVar, len(vars))
	for _, v := range vars {
		byID[v.job.JobID] = v
		for _, predID := range v.job.Precedence {
			if inCtx[predID] {
				indegree[v.job.JobID]++
				successors[predID] = append(successors[predID], v)
			}
		}
	}

	var ready []*jobVar
	for _, v := range vars {
		if indegree[v.job.JobID] == 0 {
			ready = append(ready, v)
		}
	}

	order := make([]*jobVar, 0, len(vars))
	for len(ready) > 0 {
		idx := rng.Intn(len(ready))
		v := ready[idx]
		ready[idx] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		order = append(order, v)
		for _, succ := range successors[v.job.JobID] {
			indegree[succ.job.JobID]--
			if indegree[succ.job.JobID] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) != len(vars) {
		return nil
	}
	return order
}

// placeState 一次落位尝试的局部资源状态，不触碰共享上下文
type placeState struct {
	equipment map[string][]model.TimeRange
	techs     map[string][]model.TimeRange
	tools     map[string][]model.QuantityReservation
	materials map[string]int
	jobEnds   map[string]time.Time
}

// placeOrder 按给定顺序逐个做最早可行落位
// bound 为当前最优目标值，超界即剪枝；任一工单放不下则整个顺序作废
func placeOrder(p *plan.Context, order []*jobVar, rng *rand.Rand, bound int64) *solution {
	st := &placeState{
		equipment: make(map[string][]model.TimeRange),
		techs:     make(map[string][]model.TimeRange),
		tools:     make(map[string][]model.QuantityReservation),
		materials: make(map[string]int),
		jobEnds:   make(map[string]time.Time),
	}

	placements := make([]placement, 0, len(order))
	var makespanEnd time.Time
	var startSum int64
	days := make(map[string]bool)

	for _, v := range order {
		earliest := p.TStart
		for _, predID := range v.job.Precedence {
			if end, ok := st.jobEnds[predID]; ok && end.After(earliest) {
				earliest = end
			}
		}

		pl, ok := placeJob(p, st, v, earliest, rng)
		if !ok {
			return nil
		}

		st.equipment[v.job.EquipmentID] = append(st.equipment[v.job.EquipmentID],
			model.TimeRange{Start: pl.start, End: pl.end})
		st.techs[pl.techID] = append(st.techs[pl.techID],
			model.TimeRange{Start: pl.start, End: pl.end})
		for _, req := range v.job.RequiredTools {
			st.tools[req.ToolID] = append(st.tools[req.ToolID],
				model.QuantityReservation{Start: pl.start, End: pl.end, Quantity: req.Quantity})
		}
		for _, req := range v.job.RequiredMaterials {
			st.materials[req.MaterialID] += req.Quantity
		}
		st.jobEnds[v.job.JobID] = pl.end
		placements = append(placements, pl)

		if pl.end.After(makespanEnd) {
			makespanEnd = pl.end
		}
		startSum += int64(pl.start.Sub(p.TStart) / time.Minute)
		days[pl.start.Format("2006-01-02")] = true

		// 部分目标值已超过当前最优，剪枝
		if bound >= 0 && partialObjective(p.TStart, makespanEnd, len(days), startSum) >= bound {
			return nil
		}
	}

	return &solution{
		placements: placements,
		objective:  partialObjective(p.TStart, makespanEnd, len(days), startSum),
	}
}

// partialObjective 计算目标值 W1·makespan + W2·使用天数 + Σ开始时刻
func partialObjective(tStart, makespanEnd time.Time, daysUsed int, startSum int64) int64 {
	makespanMin := int64(makespanEnd.Sub(tStart) / time.Minute)
	return weightMakespan*makespanMin + weightDaysUsed*int64(daysUsed) + startSum
}

// placeJob 为单个工单寻找最早可行的（窗口，开始时刻，技师）组合
// 冲突时跳到冲突时段结束处而不是逐分钟推进
func placeJob(p *plan.Context, st *placeState, v *jobVar, earliest time.Time, rng *rand.Rand) (placement, bool) {
	techOrder := append([]string(nil), v.techs...)
	rng.Shuffle(len(techOrder), func(i, j int) {
		techOrder[i], techOrder[j] = techOrder[j], techOrder[i]
	})

	for _, w := range v.windows {
		latest := w.End.Add(-v.dur)
		start := w.Start
		if earliest.After(start) {
			start = earliest
		}
		start = start.Truncate(time.Minute)
		if start.Before(w.Start) {
			start = w.Start
		}

		for !start.After(latest) {
			end := start.Add(v.dur)

			if next, conflict := conflictJump(p, st, v, start, end); conflict {
				start = next.Truncate(time.Minute)
				if start.Before(w.Start) {
					start = w.Start
				}
				continue
			}

			for _, techID := range techOrder {
				if techFree(p, st, techID, start, end) {
					return placement{jobID: v.job.JobID, start: start, end: end, techID: techID}, true
				}
			}
			// 所有候选技师在该时刻都被占用，推进一分钟
			start = start.Add(time.Minute)
		}
	}
	return placement{}, false
}

// conflictJump 检查设备与工具约束，冲突时返回可跳转到的时刻
func conflictJump(p *plan.Context, st *placeState, v *jobVar, start, end time.Time) (time.Time, bool) {
	equip := p.Equipment(v.job.EquipmentID)
	if !equip.WithinWindow(start, end) {
		return equip.NextWindowStart(start.Add(time.Minute)), true
	}
	for _, r := range equip.Schedule {
		if start.Before(r.End) && r.Start.Before(end) {
			return r.End, true
		}
	}
	for _, r := range st.equipment[v.job.EquipmentID] {
		if start.Before(r.End) && r.Start.Before(end) {
			return r.End, true
		}
	}

	for _, req := range v.job.RequiredTools {
		tool := p.Tool(req.ToolID)
		inUse := 0
		jump := time.Time{}
		for _, r := range tool.Reservations {
			if start.Before(r.End) && r.Start.Before(end) {
				inUse += r.Quantity
				if jump.IsZero() || r.End.Before(jump) {
					jump = r.End
				}
			}
		}
		for _, r := range st.tools[req.ToolID] {
			if start.Before(r.End) && r.Start.Before(end) {
				inUse += r.Quantity
				if jump.IsZero() || r.End.Before(jump) {
					jump = r.End
				}
			}
		}
		if tool.TotalQuantity-inUse < req.Quantity {
			return jump, true
		}
	}
	return time.Time{}, false
}

// techFree 检查技师在局部状态叠加下是否可承担该时段
func techFree(p *plan.Context, st *placeState, techID string, start, end time.Time) bool {
	tech := p.Technician(techID)
	if !tech.IsAvailable(start, end) {
		return false
	}
	for _, r := range st.techs[techID] {
		if start.Before(r.End) && r.Start.Before(end) {
			return false
		}
	}
	return true
}
