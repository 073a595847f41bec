// Package optimizer 提供元启发式优化器
// 遗传算法与模拟退火共享同一套解编码与惩罚评估语义
package optimizer

import (
	"math/rand"
	"time"

	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
)

// maxTeamSize 单个工单最多派遣的技师数
const maxTeamSize = 2

// mutationShift 变异时开始时刻的最大偏移量
const mutationShift = 12 * time.Hour

// Gene 单个工单的排定决策
type Gene struct {
	Start   time.Time
	TechIDs []string
}

// Individual 一个完整候选解，按工单顺序对应运行上下文中的 Jobs
type Individual struct {
	Genes []Gene
	Score float64
}

// Clone 深拷贝个体
func (ind *Individual) Clone() *Individual {
	clone := &Individual{
		Genes: make([]Gene, len(ind.Genes)),
		Score: ind.Score,
	}
	for i, g := range ind.Genes {
		clone.Genes[i] = Gene{
			Start:   g.Start,
			TechIDs: append([]string(nil), g.TechIDs...),
		}
	}
	return clone
}

// RandomIndividual 随机生成一个个体
// 开始时刻落在能放下整个工时的工作窗口内，技师从合格技师中抽样
func RandomIndividual(p *plan.Context, rng *rand.Rand) *Individual {
	ind := &Individual{Genes: make([]Gene, len(p.Jobs))}
	for i, job := range p.Jobs {
		ind.Genes[i] = Gene{
			Start:   randomStart(p, job, rng),
			TechIDs: sampleTechs(p, job, rng),
		}
	}
	return ind
}

// randomStart 在候选窗口中随机取一个按分钟对齐的开始时刻
// 没有窗口放得下时退化为排程起点，由惩罚项驱动淘汰
func randomStart(p *plan.Context, job *model.Job, rng *rand.Rand) time.Time {
	dur := job.Duration()
	var candidates []model.TimeRange
	for _, w := range p.Cal.WorkingWindows(p.TStart, p.TEnd) {
		if w.Duration() >= dur {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return p.TStart
	}
	w := candidates[rng.Intn(len(candidates))]
	slack := int(w.Duration()-dur) / int(time.Minute)
	offset := 0
	if slack > 0 {
		offset = rng.Intn(slack + 1)
	}
	return w.Start.Add(time.Duration(offset) * time.Minute)
}

// sampleTechs 从合格技师中抽取最多 maxTeamSize 名
// 合格即独立覆盖全部所需技能；无合格技师时留空，由惩罚项处理
func sampleTechs(p *plan.Context, job *model.Job, rng *rand.Rand) []string {
	eligible := p.EligibleTechnicians(job)
	if len(eligible) == 0 {
		return nil
	}
	count := 1
	if len(eligible) >= maxTeamSize && rng.Float64() < 0.5 {
		count = maxTeamSize
	}
	picked := rng.Perm(len(eligible))[:count]
	techs := make([]string, count)
	for i, idx := range picked {
		techs[i] = eligible[idx].TechID
	}
	return techs
}

// Mutate 变异一个基因：开始时刻随机偏移并重新对齐，技师重新抽样
func Mutate(p *plan.Context, ind *Individual, idx int, rng *rand.Rand) {
	job := p.Jobs[idx]
	g := &ind.Genes[idx]

	shift := time.Duration(rng.Int63n(int64(2*mutationShift))) - mutationShift
	shifted := g.Start.Add(shift)
	if shifted.Before(p.TStart) {
		shifted = p.TStart
	}
	aligned := p.Cal.NextWorkingInstant(shifted)
	if aligned.After(p.TEnd) {
		aligned = randomStart(p, job, rng)
	}
	g.Start = aligned.Truncate(time.Minute)
	g.TechIDs = sampleTechs(p, job, rng)
}
