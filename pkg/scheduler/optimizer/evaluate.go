package optimizer

import (
	"sort"
	"sync"
	"time"

	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
)

// penaltyUnit 单次硬约束违反的惩罚量
// 惩罚主导评分，任何违反都压过 makespan 的改善
const penaltyUnit = 1000.0

// Evaluator 候选解评估器
// 评分 = makespan（小时） + 惩罚项之和，越小越好
type Evaluator struct {
	p       *plan.Context
	jobIdx  map[string]int
	workers int
}

// NewEvaluator 创建评估器
func NewEvaluator(p *plan.Context, workers int) *Evaluator {
	if workers <= 0 {
		workers = 4
	}
	idx := make(map[string]int, len(p.Jobs))
	for i, job := range p.Jobs {
		idx[job.JobID] = i
	}
	return &Evaluator{p: p, jobIdx: idx, workers: workers}
}

// Evaluate 计算个体评分并写回 Score
func (e *Evaluator) Evaluate(ind *Individual) float64 {
	score := e.makespanHours(ind) + e.penalty(ind)
	ind.Score = score
	return score
}

// EvaluateAll 并行评估一批个体
func (e *Evaluator) EvaluateAll(population []*Individual) {
	jobs := make(chan *Individual, len(population))
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range jobs {
				e.Evaluate(ind)
			}
		}()
	}
	for _, ind := range population {
		jobs <- ind
	}
	close(jobs)
	wg.Wait()
}

// makespanHours 个体的 makespan（小时）
// 从排程边界起点量到最晚结束，与 model.Makespan 的最早开始起点不同
func (e *Evaluator) makespanHours(ind *Individual) float64 {
	var latest time.Time
	for i, job := range e.p.Jobs {
		end := ind.Genes[i].Start.Add(job.Duration())
		if end.After(latest) {
			latest = end
		}
	}
	if latest.IsZero() {
		return 0
	}
	return latest.Sub(e.p.TStart).Hours()
}

// penalty 汇总全部硬约束违反的惩罚
func (e *Evaluator) penalty(ind *Individual) float64 {
	total := 0.0
	total += e.horizonPenalty(ind)
	total += e.workingHoursPenalty(ind)
	total += e.overlapPenalty(ind)
	total += e.toolPenalty(ind)
	total += e.materialPenalty(ind)
	total += e.precedencePenalty(ind)
	total += e.skillPenalty(ind)
	return total
}

// horizonPenalty 越出排程边界的工单
func (e *Evaluator) horizonPenalty(ind *Individual) float64 {
	total := 0.0
	for i, job := range e.p.Jobs {
		start := ind.Genes[i].Start
		end := start.Add(job.Duration())
		if start.Before(e.p.TStart) || end.After(e.p.TEnd) {
			total += penaltyUnit
		}
	}
	return total
}

// workingHoursPenalty 工单时段触及的每个非工作小时计一分
func (e *Evaluator) workingHoursPenalty(ind *Individual) float64 {
	total := 0.0
	for i, job := range e.p.Jobs {
		start := ind.Genes[i].Start
		end := start.Add(job.Duration())
		for t := start; t.Before(end); t = t.Add(time.Hour) {
			if !e.p.Cal.IsWorkingInstant(t) {
				total++
			}
		}
	}
	return total
}

// overlapPenalty 同设备或同技师的重叠工单对
func (e *Evaluator) overlapPenalty(ind *Individual) float64 {
	total := 0.0
	for i := range e.p.Jobs {
		si := ind.Genes[i].Start
		ei := si.Add(e.p.Jobs[i].Duration())
		for j := i + 1; j < len(e.p.Jobs); j++ {
			sj := ind.Genes[j].Start
			ej := sj.Add(e.p.Jobs[j].Duration())
			if !si.Before(ej) || !sj.Before(ei) {
				continue
			}
			if e.p.Jobs[i].EquipmentID == e.p.Jobs[j].EquipmentID {
				total += penaltyUnit
			}
			if sharesTech(ind.Genes[i].TechIDs, ind.Genes[j].TechIDs) {
				total += penaltyUnit
			}
		}
	}
	return total
}

// toolPenalty 事件扫描法统计工具超量
// 在每个占用变化点检查重叠需求之和是否超过总量
func (e *Evaluator) toolPenalty(ind *Individual) float64 {
	type interval struct {
		start, end time.Time
		quantity   int
	}
	usage := make(map[string][]interval)
	for i, job := range e.p.Jobs {
		start := ind.Genes[i].Start
		end := start.Add(job.Duration())
		for _, req := range job.RequiredTools {
			usage[req.ToolID] = append(usage[req.ToolID],
				interval{start: start, end: end, quantity: req.Quantity})
		}
	}

	total := 0.0
	for toolID, intervals := range usage {
		tool := e.p.Tool(toolID)
		if tool == nil {
			continue
		}
		var points []time.Time
		for _, iv := range intervals {
			points = append(points, iv.start)
		}
		for _, p := range points {
			inUse := 0
			for _, iv := range intervals {
				if !p.Before(iv.start) && p.Before(iv.end) {
					inUse += iv.quantity
				}
			}
			if inUse > tool.TotalQuantity {
				total += penaltyUnit * float64(inUse-tool.TotalQuantity)
			}
		}
	}
	return total
}

// materialPenalty 物料总需求超出库存的部分
func (e *Evaluator) materialPenalty(ind *Individual) float64 {
	demand := make(map[string]int)
	for _, job := range e.p.Jobs {
		for _, req := range job.RequiredMaterials {
			demand[req.MaterialID] += req.Quantity
		}
	}
	total := 0.0
	for matID, need := range demand {
		mat := e.p.Material(matID)
		if mat == nil {
			total += penaltyUnit * float64(need)
			continue
		}
		if need > mat.TotalQuantity {
			total += penaltyUnit * float64(need-mat.TotalQuantity)
		}
	}
	return total
}

// precedencePenalty 前置工单结束晚于后继开始的违反对
func (e *Evaluator) precedencePenalty(ind *Individual) float64 {
	total := 0.0
	for i, job := range e.p.Jobs {
		start := ind.Genes[i].Start
		for _, predID := range job.Precedence {
			predIdx, ok := e.jobIdx[predID]
			if !ok {
				total += penaltyUnit
				continue
			}
			predEnd := ind.Genes[predIdx].Start.Add(e.p.Jobs[predIdx].Duration())
			if predEnd.After(start) {
				total += penaltyUnit
			}
		}
	}
	return total
}

// skillPenalty 未派技师或团队未覆盖所需技能的工单
func (e *Evaluator) skillPenalty(ind *Individual) float64 {
	total := 0.0
	for i, job := range e.p.Jobs {
		techs := ind.Genes[i].TechIDs
		if len(techs) == 0 {
			total += penaltyUnit
			continue
		}
		skills := make(map[string]bool)
		for _, techID := range techs {
			if tech := e.p.Technician(techID); tech != nil {
				for _, s := range tech.Skills {
					skills[s] = true
				}
			}
		}
		if !model.SkillsCovered(skills, job.RequiredSkills) {
			total += penaltyUnit
		}
	}
	return total
}

// sharesTech 检查两个技师列表是否有交集
func sharesTech(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Decode 将最优个体落回运行上下文
// 按开始时刻顺序逐个校验并排定，排不下的工单进入剔除列表
func (e *Evaluator) Decode(ind *Individual) []model.Rejection {
	order := make([]int, len(e.p.Jobs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ind.Genes[order[a]].Start.Before(ind.Genes[order[b]].Start)
	})

	var rejections []model.Rejection
	for _, idx := range order {
		job := e.p.Jobs[idx]
		g := ind.Genes[idx]
		if reason, ok := e.checkPlacement(job, g); !ok {
			rejections = append(rejections, model.Rejection{
				JobID:   job.JobID,
				Reasons: []string{reason},
			})
			continue
		}
		e.p.Commit(job, g.Start, g.Start.Add(job.Duration()), g.TechIDs)
	}
	return rejections
}

// checkPlacement 校验单个落位在已提交状态下是否可行
func (e *Evaluator) checkPlacement(job *model.Job, g Gene) (string, bool) {
	start := g.Start
	end := start.Add(job.Duration())

	for _, predID := range job.Precedence {
		a, ok := e.p.CommittedAssignment(predID)
		if !ok || a.End.Time().After(start) {
			return "Predecessor jobs not completed.", false
		}
	}

	if start.Before(e.p.TStart) || end.After(e.p.TEnd) {
		return "Resource constraints or scheduling window exceeded.", false
	}
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		if !e.p.Cal.IsWorkingInstant(t) {
			return "Resource constraints or scheduling window exceeded.", false
		}
	}

	equip := e.p.Equipment(job.EquipmentID)
	if equip == nil || !equip.IsAvailable(start, end) {
		return "Resource constraints or scheduling window exceeded.", false
	}

	if len(g.TechIDs) == 0 {
		return "Resource constraints or scheduling window exceeded.", false
	}
	skills := make(map[string]bool)
	for _, techID := range g.TechIDs {
		tech := e.p.Technician(techID)
		if tech == nil || !tech.IsAvailable(start, end) {
			return "Resource constraints or scheduling window exceeded.", false
		}
		for _, s := range tech.Skills {
			skills[s] = true
		}
	}
	if !model.SkillsCovered(skills, job.RequiredSkills) {
		return "Resource constraints or scheduling window exceeded.", false
	}

	for _, req := range job.RequiredTools {
		tool := e.p.Tool(req.ToolID)
		if tool == nil || !tool.IsAvailable(start, end, req.Quantity) {
			return "Resource constraints or scheduling window exceeded.", false
		}
	}
	for _, req := range job.RequiredMaterials {
		mat := e.p.Material(req.MaterialID)
		if mat == nil || !mat.IsAvailable(req.Quantity) {
			return "Resource constraints or scheduling window exceeded.", false
		}
	}
	return "", true
}
