package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
	"github.com/weixiu/weixiu/pkg/scheduler/solver"
)

// AnnealingConfig 模拟退火参数
type AnnealingConfig struct {
	InitialTemp     float64
	MinTemp         float64
	CoolingRate     float64
	InnerIterations int
	Workers         int
	Seed            int64
}

// DefaultAnnealingConfig 返回默认参数
func DefaultAnnealingConfig() AnnealingConfig {
	return AnnealingConfig{
		InitialTemp:     100,
		MinTemp:         0.01,
		CoolingRate:     0.95,
		InnerIterations: 50,
		Workers:         4,
	}
}

// AnnealingSolver 模拟退火求解器
type AnnealingSolver struct {
	cfg    AnnealingConfig
	logger *logger.SchedulerLogger
}

// NewAnnealingSolver 创建模拟退火求解器
func NewAnnealingSolver(cfg AnnealingConfig) *AnnealingSolver {
	if cfg.InitialTemp <= 0 {
		cfg = DefaultAnnealingConfig()
	}
	return &AnnealingSolver{
		cfg:    cfg,
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *AnnealingSolver) Name() string {
	return "annealing"
}

// Solve 运行模拟退火并将历史最优解落回上下文
func (s *AnnealingSolver) Solve(ctx context.Context, p *plan.Context) (*solver.Result, error) {
	startTime := time.Now()
	p.Coverage = plan.CoverageTeam
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	eval := NewEvaluator(p, s.cfg.Workers)

	current := RandomIndividual(p, rng)
	eval.Evaluate(current)
	best := current.Clone()
	iterations := 0

	if len(current.Genes) == 0 {
		return &solver.Result{
			Statistics: solver.BuildStatistics(0, nil, nil),
			Duration:   time.Since(startTime),
			Success:    true,
			Message:    "没有待排工单",
		}, nil
	}

	for temp := s.cfg.InitialTemp; temp > s.cfg.MinTemp; temp *= s.cfg.CoolingRate {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < s.cfg.InnerIterations; i++ {
			iterations++
			neighbor := current.Clone()
			Mutate(p, neighbor, rng.Intn(len(neighbor.Genes)), rng)
			eval.Evaluate(neighbor)

			// Metropolis 准则：更差的解以 exp(-Δ/T) 概率接受
			delta := neighbor.Score - current.Score
			if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
				current = neighbor
			}
			if current.Score < best.Score {
				best = current.Clone()
				s.logger.BestScore(s.Name(), iterations, best.Score)
			}
		}
	}

	rejections := eval.Decode(best)
	result := &solver.Result{
		Assignments: p.Committed(),
		Rejections:  rejections,
		Statistics:  solver.BuildStatistics(len(p.Jobs), p.Committed(), rejections),
		Duration:    time.Since(startTime),
		Success:     true,
		Message:     fmt.Sprintf("模拟退火完成 %d 次迭代，最优评分 %.2f", iterations, best.Score),
	}
	result.Statistics.Iterations = iterations
	result.Statistics.BestScore = best.Score
	return result, nil
}
