// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig 调度引擎配置
type SchedulerConfig struct {
	ConstraintTimeout time.Duration `yaml:"constraint_timeout"`
	ConstraintWorkers int           `yaml:"constraint_workers"`

	GAPopulationSize int     `yaml:"ga_population_size"`
	GAGenerations    int     `yaml:"ga_generations"`
	GATournamentSize int     `yaml:"ga_tournament_size"`
	GACrossoverRate  float64 `yaml:"ga_crossover_rate"`
	GAMutationRate   float64 `yaml:"ga_mutation_rate"`

	SAInitialTemp     float64 `yaml:"sa_initial_temp"`
	SAMinTemp         float64 `yaml:"sa_min_temp"`
	SACoolingRate     float64 `yaml:"sa_cooling_rate"`
	SAInnerIterations int     `yaml:"sa_inner_iterations"`

	EvalWorkers int `yaml:"eval_workers"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "weixiu"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7031),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "weixiu"),
			User:            getEnv("DB_USER", "weixiu"),
			Password:        getEnv("DB_PASSWORD", "weixiu123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			Timeout: getEnvDuration("API_TIMEOUT", 120*time.Second),
		},
		Scheduler: SchedulerConfig{
			ConstraintTimeout: getEnvDuration("SCHEDULER_CONSTRAINT_TIMEOUT", 60*time.Second),
			ConstraintWorkers: getEnvInt("SCHEDULER_CONSTRAINT_WORKERS", 4),
			GAPopulationSize:  getEnvInt("SCHEDULER_GA_POPULATION", 100),
			GAGenerations:     getEnvInt("SCHEDULER_GA_GENERATIONS", 100),
			GATournamentSize:  getEnvInt("SCHEDULER_GA_TOURNAMENT", 5),
			GACrossoverRate:   getEnvFloat("SCHEDULER_GA_CROSSOVER_RATE", 0.8),
			GAMutationRate:    getEnvFloat("SCHEDULER_GA_MUTATION_RATE", 0.1),
			SAInitialTemp:     getEnvFloat("SCHEDULER_SA_INITIAL_TEMP", 100),
			SAMinTemp:         getEnvFloat("SCHEDULER_SA_MIN_TEMP", 0.01),
			SACoolingRate:     getEnvFloat("SCHEDULER_SA_COOLING_RATE", 0.95),
			SAInnerIterations: getEnvInt("SCHEDULER_SA_INNER_ITERATIONS", 50),
			EvalWorkers:       getEnvInt("SCHEDULER_EVAL_WORKERS", 4),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
