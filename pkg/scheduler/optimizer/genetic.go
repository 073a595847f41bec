package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/scheduler/plan"
	"github.com/weixiu/weixiu/pkg/scheduler/solver"
)

// GeneticConfig 遗传算法参数
type GeneticConfig struct {
	PopulationSize int
	Generations    int
	TournamentSize int
	CrossoverRate  float64
	MutationRate   float64
	Workers        int
	Seed           int64
}

// DefaultGeneticConfig 返回默认参数
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize: 100,
		Generations:    100,
		TournamentSize: 5,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		Workers:        4,
	}
}

// GeneticSolver 遗传算法求解器
type GeneticSolver struct {
	cfg    GeneticConfig
	logger *logger.SchedulerLogger
}

// NewGeneticSolver 创建遗传算法求解器
func NewGeneticSolver(cfg GeneticConfig) *GeneticSolver {
	if cfg.PopulationSize <= 0 {
		cfg = DefaultGeneticConfig()
	}
	return &GeneticSolver{
		cfg:    cfg,
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *GeneticSolver) Name() string {
	return "genetic"
}

// Solve 运行遗传算法并将最优个体落回上下文
func (s *GeneticSolver) Solve(ctx context.Context, p *plan.Context) (*solver.Result, error) {
	startTime := time.Now()
	p.Coverage = plan.CoverageTeam
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	eval := NewEvaluator(p, s.cfg.Workers)

	population := make([]*Individual, s.cfg.PopulationSize)
	for i := range population {
		population[i] = RandomIndividual(p, rng)
	}
	eval.EvaluateAll(population)

	best := fittest(population).Clone()
	generations := 0

	for gen := 0; gen < s.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		generations++

		// 精英保留，其余由锦标赛选择加交叉变异产生
		next := make([]*Individual, 0, s.cfg.PopulationSize)
		next = append(next, best.Clone())
		for len(next) < s.cfg.PopulationSize {
			parentA := tournament(population, s.cfg.TournamentSize, rng)
			parentB := tournament(population, s.cfg.TournamentSize, rng)

			var child *Individual
			if rng.Float64() < s.cfg.CrossoverRate {
				child = crossover(parentA, parentB, rng)
			} else {
				child = parentA.Clone()
			}
			for i := range child.Genes {
				if rng.Float64() < s.cfg.MutationRate {
					Mutate(p, child, i, rng)
				}
			}
			next = append(next, child)
		}

		population = next
		eval.EvaluateAll(population)

		if candidate := fittest(population); candidate.Score < best.Score {
			best = candidate.Clone()
			s.logger.BestScore(s.Name(), gen, best.Score)
		}
	}

	rejections := eval.Decode(best)
	result := &solver.Result{
		Assignments: p.Committed(),
		Rejections:  rejections,
		Statistics:  solver.BuildStatistics(len(p.Jobs), p.Committed(), rejections),
		Duration:    time.Since(startTime),
		Success:     true,
		Message:     fmt.Sprintf("遗传算法完成 %d 代，最优评分 %.2f", generations, best.Score),
	}
	result.Statistics.Iterations = generations
	result.Statistics.BestScore = best.Score
	return result, nil
}

// tournament 锦标赛选择
func tournament(population []*Individual, size int, rng *rand.Rand) *Individual {
	best := population[rng.Intn(len(population))]
	for i := 1; i < size; i++ {
		challenger := population[rng.Intn(len(population))]
		if challenger.Score < best.Score {
			best = challenger
		}
	}
	return best
}

// crossover 单点交叉
func crossover(a, b *Individual, rng *rand.Rand) *Individual {
	child := a.Clone()
	if len(child.Genes) < 2 {
		return child
	}
	point := 1 + rng.Intn(len(child.Genes)-1)
	for i := point; i < len(child.Genes); i++ {
		child.Genes[i] = Gene{
			Start:   b.Genes[i].Start,
			TechIDs: append([]string(nil), b.Genes[i].TechIDs...),
		}
	}
	return child
}

// fittest 返回种群中评分最低的个体
func fittest(population []*Individual) *Individual {
	best := population[0]
	for _, ind := range population[1:] {
		if ind.Score < best.Score {
			best = ind
		}
	}
	return best
}
