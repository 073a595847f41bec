// WeiXiu 维修排程引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weixiu/weixiu/internal/config"
	"github.com/weixiu/weixiu/internal/database"
	"github.com/weixiu/weixiu/internal/handler"
	"github.com/weixiu/weixiu/internal/metrics"
	"github.com/weixiu/weixiu/internal/repository"
	"github.com/weixiu/weixiu/pkg/logger"
	"github.com/weixiu/weixiu/pkg/scheduler"
	"github.com/weixiu/weixiu/pkg/scheduler/optimizer"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("WeiXiu 维修排程引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	engine := scheduler.NewEngine(scheduler.Options{
		ConstraintTimeout: cfg.Scheduler.ConstraintTimeout,
		ConstraintWorkers: cfg.Scheduler.ConstraintWorkers,
		Genetic: optimizer.GeneticConfig{
			PopulationSize: cfg.Scheduler.GAPopulationSize,
			Generations:    cfg.Scheduler.GAGenerations,
			TournamentSize: cfg.Scheduler.GATournamentSize,
			CrossoverRate:  cfg.Scheduler.GACrossoverRate,
			MutationRate:   cfg.Scheduler.GAMutationRate,
			Workers:        cfg.Scheduler.EvalWorkers,
		},
		Annealing: optimizer.AnnealingConfig{
			InitialTemp:     cfg.Scheduler.SAInitialTemp,
			MinTemp:         cfg.Scheduler.SAMinTemp,
			CoolingRate:     cfg.Scheduler.SACoolingRate,
			InnerIterations: cfg.Scheduler.SAInnerIterations,
			Workers:         cfg.Scheduler.EvalWorkers,
		},
	})

	// 数据库不可用时服务仍可运行，只是不持久化结果
	var store handler.ScheduleStore
	var loader handler.BundleLoader
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("数据库不可用，排程结果不会被持久化")
	} else {
		defer db.Close()
		store = repository.NewScheduleRepository(db)
		loader = repository.NewBundleRepository(db)
	}

	scheduleHandler := handler.NewScheduleHandler(engine, store, cfg.API.Timeout).WithLoader(loader)

	mux := http.NewServeMux()

	// 系统端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"weixiu"}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// API v1 端点
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "WeiXiu 维修排程引擎 API v1",
			"endpoints": {
				"schedule": {
					"generate": "POST /api/v1/schedule/generate",
					"generate_from_store": "POST /api/v1/schedule/generate-from-store",
					"compare": "POST /api/v1/schedule/compare",
					"strategies": "GET /api/v1/schedule/strategies"
				}
			}
		}`))
	})
	mux.HandleFunc("/api/v1/schedule/generate", withMetrics("/api/v1/schedule/generate", scheduleHandler.Generate))
	mux.HandleFunc("/api/v1/schedule/generate-from-store", withMetrics("/api/v1/schedule/generate-from-store", scheduleHandler.GenerateFromStore))
	mux.HandleFunc("/api/v1/schedule/compare", withMetrics("/api/v1/schedule/compare", scheduleHandler.Compare))
	mux.HandleFunc("/api/v1/schedule/strategies", scheduleHandler.Strategies)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: mux,
	}

	go func() {
		logger.Info().Int("port", cfg.App.Port).Msg("HTTP服务启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP服务异常退出")
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("收到退出信号，开始优雅关闭")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP服务关闭失败")
	}
	logger.Info().Msg("服务已退出")
}

// withMetrics 包装处理器以记录请求指标
func withMetrics(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		metrics.RecordRequest(r.Method, path, sw.status, time.Since(start))
	}
}

// statusWriter 捕获响应状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
