// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flyingrobots/wfm-core/internal/bulkvalidate"
	"github.com/flyingrobots/wfm-core/internal/compliance"
	"github.com/flyingrobots/wfm-core/internal/config"
	"github.com/flyingrobots/wfm-core/internal/coverage"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/rules"
	"github.com/flyingrobots/wfm-core/internal/timetable"
	"github.com/flyingrobots/wfm-core/internal/violationmon"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "all", "Role to run: planner|compliance|monitor|coverage|optimizer|all")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rdb := gateway.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	readyCheck := func(c context.Context) error {
		_, err := rdb.Ping(c).Result()
		return err
	}
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	// The repository gateway is currently backed by the in-memory
	// reference implementation; a production deployment swaps this for
	// gateway.NewSQLGateway plus the Redis-backed stream/queue helpers
	// once a schema migration is in place.
	gw := gateway.NewMemoryGateway()
	changeStream := gateway.NewBlockChangeStream(rdb, "")
	alertStore := gateway.NewAlertQueueStore(rdb, "", 1000)

	catalog := rules.NewCatalog(24*time.Hour, logger)
	if err := catalog.StartScheduledRefresh("0 3 * * *"); err != nil {
		logger.Warn("rule matrix scheduled refresh disabled", obs.String("error", err.Error()))
	}
	defer catalog.StopScheduledRefresh()
	cache := compliance.NewCache(4 * time.Hour)
	engine := compliance.NewEngine(gw, catalog, cache, logger)

	runPlanner := func() { runPlannerRole(ctx, gw, logger) }
	runCompliance := func() { runComplianceRole(ctx, engine, logger) }
	runMonitor := func() { runMonitorRole(ctx, gw, engine, changeStream, alertStore, logger) }
	runCoverage := func() { runCoverageRole(ctx, gw, logger) }

	switch role {
	case "planner":
		runPlanner()
	case "compliance":
		runCompliance()
	case "monitor":
		runMonitor()
	case "coverage":
		runCoverage()
	case "optimizer":
		logger.Info("optimizer role has no standalone long-running loop; invoke via wfm-admin")
		<-ctx.Done()
	case "all":
		go runPlanner()
		go runCompliance()
		go runCoverage()
		runMonitor() // blocks until ctx is cancelled
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", role)
		os.Exit(1)
	}
}

func runPlannerRole(ctx context.Context, gw *gateway.MemoryGateway, logger *zap.Logger) {
	planner := timetable.NewPlanner(gw, timetable.Config{})
	_ = planner
	logger.Info("planner role idle: awaiting shift publication events")
	<-ctx.Done()
}

func runComplianceRole(ctx context.Context, engine *compliance.Engine, logger *zap.Logger) {
	validator := bulkvalidate.NewValidator(engine, logger)
	_ = validator
	logger.Info("compliance role idle: awaiting validation requests")
	<-ctx.Done()
}

func runMonitorRole(ctx context.Context, gw *gateway.MemoryGateway, engine *compliance.Engine, changeStream *gateway.BlockChangeStream, alertStore *gateway.AlertQueueStore, logger *zap.Logger) {
	monitor := violationmon.NewMonitor(violationmon.Config{}, gw, engine, nil, logger).
		WithChangeSource(changeStream).
		WithAlertStore(alertStore)
	monitor.Start(ctx)
	<-ctx.Done()
	monitor.Stop(context.Background())
}

func runCoverageRole(ctx context.Context, gw *gateway.MemoryGateway, logger *zap.Logger) {
	analyzer := coverage.NewAnalyzer(gw)
	_ = analyzer
	logger.Info("coverage role idle: no services configured for continuous monitoring")
	<-ctx.Done()
}
