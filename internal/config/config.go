// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Lunch configures the Planner's lunch-insertion step (spec.md §4.G.5).
type Lunch struct {
	EarliestStart  time.Duration `mapstructure:"earliest_start"`
	LatestStart    time.Duration `mapstructure:"latest_start"`
	MinDurationMin int           `mapstructure:"min_duration_min"`
	MaxDurationMin int           `mapstructure:"max_duration_min"`
	MinHoursBefore float64       `mapstructure:"min_hours_before_shift_start"`
}

// ShortBreak configures the Planner's break-insertion step (§4.G.6).
type ShortBreak struct {
	DurationMin             int     `mapstructure:"duration_min"`
	FrequencyHours          float64 `mapstructure:"frequency_hours"`
	SpacingMin              int     `mapstructure:"spacing_min"`
	MaxDelayMin             int     `mapstructure:"max_delay_min"`
	MaxConsecutiveWorkHours float64 `mapstructure:"max_consecutive_work_hours"`
}

// ShiftBounds configures envelope truncation and rest checks.
type ShiftBounds struct {
	MinHours     float64 `mapstructure:"min_hours"`
	MaxHours     float64 `mapstructure:"max_hours"`
	MinRestHours float64 `mapstructure:"min_rest_hours"`
}

// Compliance configures the Compliance Engine's caches.
type Compliance struct {
	CacheTTLEmployeeSec int `mapstructure:"cache_ttl_employee_sec"`
	CacheTTLRulesSec    int `mapstructure:"cache_ttl_rules_sec"`
}

// Monitor configures the Violation Monitor (§4.E).
type Monitor struct {
	RealtimePeriodSec          int `mapstructure:"realtime_period_sec"`
	RealtimePeriodUnderLoadSec int `mapstructure:"realtime_period_under_load_sec"`
	BatchPeriodSec             int `mapstructure:"batch_period_sec"`
	CooldownSec                int `mapstructure:"cooldown_sec"`
	QueueCapacity              int `mapstructure:"queue_capacity"`
	BatchSize                  int `mapstructure:"batch_size"`
}

// ThresholdBand is a default warning/critical/emergency triple.
type ThresholdBand struct {
	Warning   float64 `mapstructure:"warning"`
	Critical  float64 `mapstructure:"critical"`
	Emergency float64 `mapstructure:"emergency"`
}

// Threshold configures default alerting bands (§6).
type Threshold struct {
	ServiceLevel    ThresholdBand `mapstructure:"service_level"`
	AbandonmentRate ThresholdBand `mapstructure:"abandonment_rate"`
}

// Optimizer configures the Multi-Skill Optimizer (§4.H).
type Optimizer struct {
	PrimarySkillLoadPct   float64 `mapstructure:"primary_skill_load_pct"`
	TargetUtilization     float64 `mapstructure:"target_utilization"`
	DevelopmentReservePct float64 `mapstructure:"development_reserve_pct"`
}

// BulkValidation holds adaptive-batching settings (§4.D).
// internal/bulkvalidate does not read this section: its batch table and
// timeouts are constants in that package.
type BulkValidation struct {
	SmallBatchSize       int           `mapstructure:"small_batch_size"`
	MediumBatchSize      int           `mapstructure:"medium_batch_size"`
	LargeBatchSize       int           `mapstructure:"large_batch_size"`
	MaxConcurrentSmall   int           `mapstructure:"max_concurrent_small"`
	MaxConcurrentMedium  int           `mapstructure:"max_concurrent_medium"`
	MaxConcurrentLarge   int           `mapstructure:"max_concurrent_large"`
	BatchTimeout         time.Duration `mapstructure:"batch_timeout"`
	EmployeeTimeout      time.Duration `mapstructure:"employee_timeout"`
	MemoryBudgetFraction float64       `mapstructure:"memory_budget_fraction"`
	MemoryBudgetCapBytes int64         `mapstructure:"memory_budget_cap_bytes"`
}

// Redis configures the gateway's pooled connection, mirroring the
// teacher's internal/config Redis block.
type Redis struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	PoolOverflow int           `mapstructure:"pool_overflow"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// ObservabilityConfig configures logging and the metrics endpoint.
type ObservabilityConfig struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	LogLevel    string `mapstructure:"log_level"`
}

// Config is the root configuration object, loaded once at process start.
type Config struct {
	Redis          Redis               `mapstructure:"redis"`
	Lunch          Lunch               `mapstructure:"lunch"`
	ShortBreak     ShortBreak          `mapstructure:"short_break"`
	Shift          ShiftBounds         `mapstructure:"shift"`
	Compliance     Compliance          `mapstructure:"compliance"`
	Monitor        Monitor             `mapstructure:"monitor"`
	Threshold      Threshold           `mapstructure:"threshold"`
	Optimizer      Optimizer           `mapstructure:"optimizer"`
	BulkValidation BulkValidation      `mapstructure:"bulk_validation"`
	Observability  ObservabilityConfig `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: Redis{
			Addr:         "localhost:6379",
			PoolSize:     20,
			PoolOverflow: 30,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MaxRetries:   3,
		},
		Lunch: Lunch{
			EarliestStart:  11 * time.Hour,
			LatestStart:    14 * time.Hour,
			MinDurationMin: 30,
			MaxDurationMin: 60,
			MinHoursBefore: 2.0,
		},
		ShortBreak: ShortBreak{
			DurationMin:             15,
			FrequencyHours:          2.0,
			SpacingMin:              90,
			MaxDelayMin:             30,
			MaxConsecutiveWorkHours: 4.0,
		},
		Shift: ShiftBounds{
			MinHours:     4.0,
			MaxHours:     12.0,
			MinRestHours: 11.0,
		},
		Compliance: Compliance{
			CacheTTLEmployeeSec: 14400,
			CacheTTLRulesSec:    86400,
		},
		Monitor: Monitor{
			RealtimePeriodSec:          5,
			RealtimePeriodUnderLoadSec: 2,
			BatchPeriodSec:             1800,
			CooldownSec:                3600,
			QueueCapacity:              1000,
			BatchSize:                  50,
		},
		Threshold: Threshold{
			ServiceLevel:    ThresholdBand{Warning: 75, Critical: 65, Emergency: 55},
			AbandonmentRate: ThresholdBand{Warning: 5, Critical: 10, Emergency: 15},
		},
		Optimizer: Optimizer{
			PrimarySkillLoadPct:   70,
			TargetUtilization:     0.85,
			DevelopmentReservePct: 20,
		},
		BulkValidation: BulkValidation{
			SmallBatchSize:       25,
			MediumBatchSize:      50,
			LargeBatchSize:       100,
			MaxConcurrentSmall:   4,
			MaxConcurrentMedium:  8,
			MaxConcurrentLarge:   12,
			BatchTimeout:         30 * time.Second,
			EmployeeTimeout:      15 * time.Second,
			MemoryBudgetFraction: 0.25,
			MemoryBudgetCapBytes: 2 << 30, // 2 GB
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
		},
	}
}

// Load reads configuration from a YAML file with env-var overrides,
// exactly as the teacher's internal/config.Load does.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	setDefaults(v, def)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size", def.Redis.PoolSize)
	v.SetDefault("redis.pool_overflow", def.Redis.PoolOverflow)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)

	v.SetDefault("lunch.earliest_start", def.Lunch.EarliestStart)
	v.SetDefault("lunch.latest_start", def.Lunch.LatestStart)
	v.SetDefault("lunch.min_duration_min", def.Lunch.MinDurationMin)
	v.SetDefault("lunch.max_duration_min", def.Lunch.MaxDurationMin)
	v.SetDefault("lunch.min_hours_before_shift_start", def.Lunch.MinHoursBefore)

	v.SetDefault("short_break.duration_min", def.ShortBreak.DurationMin)
	v.SetDefault("short_break.frequency_hours", def.ShortBreak.FrequencyHours)
	v.SetDefault("short_break.spacing_min", def.ShortBreak.SpacingMin)
	v.SetDefault("short_break.max_delay_min", def.ShortBreak.MaxDelayMin)
	v.SetDefault("short_break.max_consecutive_work_hours", def.ShortBreak.MaxConsecutiveWorkHours)

	v.SetDefault("shift.min_hours", def.Shift.MinHours)
	v.SetDefault("shift.max_hours", def.Shift.MaxHours)
	v.SetDefault("shift.min_rest_hours", def.Shift.MinRestHours)

	v.SetDefault("compliance.cache_ttl_employee_sec", def.Compliance.CacheTTLEmployeeSec)
	v.SetDefault("compliance.cache_ttl_rules_sec", def.Compliance.CacheTTLRulesSec)

	v.SetDefault("monitor.realtime_period_sec", def.Monitor.RealtimePeriodSec)
	v.SetDefault("monitor.realtime_period_under_load_sec", def.Monitor.RealtimePeriodUnderLoadSec)
	v.SetDefault("monitor.batch_period_sec", def.Monitor.BatchPeriodSec)
	v.SetDefault("monitor.cooldown_sec", def.Monitor.CooldownSec)
	v.SetDefault("monitor.queue_capacity", def.Monitor.QueueCapacity)
	v.SetDefault("monitor.batch_size", def.Monitor.BatchSize)

	v.SetDefault("threshold.service_level.warning", def.Threshold.ServiceLevel.Warning)
	v.SetDefault("threshold.service_level.critical", def.Threshold.ServiceLevel.Critical)
	v.SetDefault("threshold.service_level.emergency", def.Threshold.ServiceLevel.Emergency)
	v.SetDefault("threshold.abandonment_rate.warning", def.Threshold.AbandonmentRate.Warning)
	v.SetDefault("threshold.abandonment_rate.critical", def.Threshold.AbandonmentRate.Critical)
	v.SetDefault("threshold.abandonment_rate.emergency", def.Threshold.AbandonmentRate.Emergency)

	v.SetDefault("optimizer.primary_skill_load_pct", def.Optimizer.PrimarySkillLoadPct)
	v.SetDefault("optimizer.target_utilization", def.Optimizer.TargetUtilization)
	v.SetDefault("optimizer.development_reserve_pct", def.Optimizer.DevelopmentReservePct)

	v.SetDefault("bulk_validation.small_batch_size", def.BulkValidation.SmallBatchSize)
	v.SetDefault("bulk_validation.medium_batch_size", def.BulkValidation.MediumBatchSize)
	v.SetDefault("bulk_validation.large_batch_size", def.BulkValidation.LargeBatchSize)
	v.SetDefault("bulk_validation.max_concurrent_small", def.BulkValidation.MaxConcurrentSmall)
	v.SetDefault("bulk_validation.max_concurrent_medium", def.BulkValidation.MaxConcurrentMedium)
	v.SetDefault("bulk_validation.max_concurrent_large", def.BulkValidation.MaxConcurrentLarge)
	v.SetDefault("bulk_validation.batch_timeout", def.BulkValidation.BatchTimeout)
	v.SetDefault("bulk_validation.employee_timeout", def.BulkValidation.EmployeeTimeout)
	v.SetDefault("bulk_validation.memory_budget_fraction", def.BulkValidation.MemoryBudgetFraction)
	v.SetDefault("bulk_validation.memory_budget_cap_bytes", def.BulkValidation.MemoryBudgetCapBytes)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
}

// Validate checks config constraints, returning an error on invalid
// combinations, exactly as the teacher's internal/config.Validate does.
func Validate(cfg *Config) error {
	if cfg.Shift.MinHours <= 0 || cfg.Shift.MaxHours <= cfg.Shift.MinHours {
		return fmt.Errorf("shift.min_hours must be >0 and < shift.max_hours")
	}
	if cfg.Shift.MinRestHours <= 0 {
		return fmt.Errorf("shift.min_rest_hours must be > 0")
	}
	if cfg.Lunch.MinDurationMin <= 0 || cfg.Lunch.MaxDurationMin < cfg.Lunch.MinDurationMin {
		return fmt.Errorf("lunch.min_duration_min must be >0 and <= lunch.max_duration_min")
	}
	if cfg.ShortBreak.DurationMin <= 0 {
		return fmt.Errorf("short_break.duration_min must be > 0")
	}
	if cfg.Monitor.QueueCapacity <= 0 {
		return fmt.Errorf("monitor.queue_capacity must be > 0")
	}
	if cfg.Monitor.CooldownSec <= 0 {
		return fmt.Errorf("monitor.cooldown_sec must be > 0")
	}
	if cfg.Optimizer.TargetUtilization <= 0 || cfg.Optimizer.TargetUtilization > 1 {
		return fmt.Errorf("optimizer.target_utilization must be in (0,1]")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
