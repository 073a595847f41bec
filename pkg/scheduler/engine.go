// Package scheduler 提供维修排程引擎的编排层
// 负责输入校验、可行性预检、策略分发与结果汇总
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/errors"
	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/optimizer"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
	"github.com/weixiu/weixiu/pkg/scheduler/precheck"
	"github.com/weixiu/weixiu/pkg/scheduler/solver"
)

// 支持的调度策略
const (
	StrategyGreedy     = "greedy"
	StrategyConstraint = "constraint"
	StrategyGenetic    = "genetic"
	StrategyAnnealing  = "annealing"
)

// Options 引擎参数
type Options struct {
	ConstraintTimeout time.Duration
	ConstraintWorkers int
	Genetic           optimizer.GeneticConfig
	Annealing         optimizer.AnnealingConfig
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		ConstraintTimeout: 60 * time.Second,
		ConstraintWorkers: 4,
		Genetic:           optimizer.DefaultGeneticConfig(),
		Annealing:         optimizer.DefaultAnnealingConfig(),
	}
}

// Engine 排程引擎
// 无共享可变状态，同一实例可被并发调用
type Engine struct {
	opts   Options
	logger *logger.SchedulerLogger
}

// NewEngine 创建排程引擎
func NewEngine(opts Options) *Engine {
	if opts.ConstraintTimeout <= 0 {
		opts = DefaultOptions()
	}
	return &Engine{
		opts:   opts,
		logger: logger.NewSchedulerLogger(),
	}
}

// Strategies 返回全部支持的策略名
func Strategies() []string {
	return []string{StrategyGreedy, StrategyConstraint, StrategyGenetic, StrategyAnnealing}
}

// Generate 执行一次完整的调度运行
// 输入快照校验失败返回错误；可行工单交给所选策略排程
func (e *Engine) Generate(ctx context.Context, bundle *model.PlanningBundle, strategy string) (*model.Schedule, error) {
	startTime := time.Now()

	sv, err := e.solverFor(strategy)
	if err != nil {
		return nil, err
	}

	cal, err := e.buildCalendar(bundle)
	if err != nil {
		return nil, err
	}
	if err := e.validate(bundle, cal); err != nil {
		return nil, err
	}

	feasible, rejected := precheck.Run(bundle, cal)
	pctx := plan.NewContext(bundle, cal, feasible)
	e.logger.StartRun(pctx.RunID.String(), strategy, len(bundle.Jobs), len(bundle.Technicians))

	result, err := sv.Solve(ctx, pctx)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("run_id", pctx.RunID.String()).
		Str("solver", sv.Name()).
		Str("coverage", string(pctx.Coverage)).
		Msg("求解完成")

	assignments := append([]model.Assignment(nil), result.Assignments...)
	model.SortAssignments(assignments)
	rejections := append(rejected, result.Rejections...)

	schedule := &model.Schedule{
		RunID:       pctx.RunID,
		Strategy:    strategy,
		Assignments: assignments,
		Rejections:  rejections,
		Statistics: &model.ScheduleStats{
			TotalJobs:       len(bundle.Jobs),
			ScheduledJobs:   len(assignments),
			RejectedJobs:    len(rejections),
			MakespanMinutes: model.Makespan(assignments).Minutes(),
		},
		Elapsed: time.Since(startTime),
	}
	if len(bundle.Jobs) > 0 {
		schedule.Statistics.SchedulingRate = float64(len(assignments)) / float64(len(bundle.Jobs)) * 100
	}
	if result.Statistics != nil {
		schedule.Statistics.Iterations = result.Statistics.Iterations
	}

	e.logger.RunComplete(pctx.RunID.String(), schedule.Elapsed, len(assignments), len(rejections))
	return schedule, nil
}

// solverFor 按策略名构造求解器
func (e *Engine) solverFor(strategy string) (solver.Solver, error) {
	switch strategy {
	case StrategyGreedy:
		return solver.NewGreedySolver(), nil
	case StrategyConstraint:
		return solver.NewConstraintSolver(e.opts.ConstraintTimeout, e.opts.ConstraintWorkers), nil
	case StrategyGenetic:
		return optimizer.NewGeneticSolver(e.opts.Genetic), nil
	case StrategyAnnealing:
		return optimizer.NewAnnealingSolver(e.opts.Annealing), nil
	default:
		return nil, errors.UnknownStrategy(strategy)
	}
}

// buildCalendar 从输入快照构造工作日历，未提供时使用默认日历
func (e *Engine) buildCalendar(bundle *model.PlanningBundle) (*calendar.WorkCalendar, error) {
	if bundle.WorkdayStart == "" && bundle.WorkdayEnd == "" && len(bundle.Workdays) == 0 {
		return calendar.Default(), nil
	}
	start, end := bundle.WorkdayStart, bundle.WorkdayEnd
	if start == "" {
		start = "08:00"
	}
	if end == "" {
		end = "17:00"
	}
	days := bundle.Workdays
	if len(days) == 0 {
		days = []int{0, 1, 2, 3, 4}
	}
	return calendar.New(start, end, days)
}

// validate 对输入快照做致命性校验
// 无效引用、前置成环、无效边界和空日历都直接拒绝整次运行
func (e *Engine) validate(bundle *model.PlanningBundle, cal *calendar.WorkCalendar) error {
	tStart, tEnd := bundle.TStart.Time(), bundle.TEnd.Time()
	if !tStart.Before(tEnd) {
		return errors.New(errors.CodeInvalidHorizon,
			fmt.Sprintf("排程边界无效: t_start %s 不早于 t_end %s",
				tStart.Format(model.TimeLayout), tEnd.Format(model.TimeLayout)))
	}

	if len(cal.WorkingWindows(tStart, tEnd)) == 0 {
		return errors.EmptyCalendar(tStart.Format(model.TimeLayout), tEnd.Format(model.TimeLayout))
	}

	equipment := make(map[string]bool, len(bundle.Equipment))
	for _, eq := range bundle.Equipment {
		equipment[eq.EquipmentID] = true
	}
	tools := make(map[string]bool, len(bundle.Tools))
	for _, t := range bundle.Tools {
		tools[t.ToolID] = true
	}
	materials := make(map[string]bool, len(bundle.Materials))
	for _, m := range bundle.Materials {
		materials[m.MaterialID] = true
	}
	jobIDs := make(map[string]bool, len(bundle.Jobs))
	for _, j := range bundle.Jobs {
		jobIDs[j.JobID] = true
	}
	allSkills := make(map[string]bool)
	for _, t := range bundle.Technicians {
		for _, s := range t.Skills {
			allSkills[s] = true
		}
	}

	for _, job := range bundle.Jobs {
		if !equipment[job.EquipmentID] {
			return errors.InvalidReference(job.JobID, "设备", job.EquipmentID)
		}
		for _, req := range job.RequiredTools {
			if !tools[req.ToolID] {
				return errors.InvalidReference(job.JobID, "工具", req.ToolID)
			}
		}
		for _, req := range job.RequiredMaterials {
			if !materials[req.MaterialID] {
				return errors.InvalidReference(job.JobID, "物料", req.MaterialID)
			}
		}
		for _, predID := range job.Precedence {
			if !jobIDs[predID] {
				return errors.InvalidReference(job.JobID, "前置工单", predID)
			}
		}
		// 未知技能不致命，预检会以技能原因剔除该工单
		for _, skill := range job.RequiredSkills {
			if !allSkills[skill] {
				logger.Warn().
					Str("job_id", job.JobID).
					Str("skill", skill).
					Msg("所需技能没有任何技师具备")
			}
		}
	}

	if cycle := detectCycle(bundle.Jobs); cycle != nil {
		return errors.PrecedenceCycle(cycle)
	}
	return nil
}
