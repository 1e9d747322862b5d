// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flyingrobots/wfm-core/internal/bulkvalidate"
	"github.com/flyingrobots/wfm-core/internal/compliance"
	"github.com/flyingrobots/wfm-core/internal/config"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/rules"
)

func main() {
	var cmd string
	var configPath string
	var employeeIDsRaw string
	var rangeDays int

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&cmd, "cmd", "", "Admin command: validate-one|validate-batch|trigger-sweep")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&employeeIDsRaw, "employees", "", "Comma-separated employee ids")
	fs.IntVar(&rangeDays, "days", 7, "Trailing window size in days")
	_ = fs.Parse(os.Args[1:])

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

	gw := gateway.NewMemoryGateway()
	catalog := rules.NewCatalog(24*time.Hour, logger)
	cache := compliance.NewCache(4 * time.Hour)
	engine := compliance.NewEngine(gw, catalog, cache, logger)

	ctx := context.Background()
	r := gateway.Range{Start: time.Now().AddDate(0, 0, -rangeDays), End: time.Now()}

	var ids []string
	for _, id := range strings.Split(employeeIDsRaw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	switch cmd {
	case "validate-one":
		if len(ids) != 1 {
			fmt.Fprintln(os.Stderr, "validate-one requires exactly one -employees id")
			os.Exit(1)
		}
		res, err := engine.ValidateOne(ctx, ids[0], r, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("employee=%s compliant=%v score=%.3f violations=%d\n", res.EmployeeID, res.Compliant, res.Score, len(res.Violations))

	case "validate-batch":
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "validate-batch requires -employees")
			os.Exit(1)
		}
		validator := bulkvalidate.NewValidator(engine, logger)
		report := validator.Run(ctx, ids, r, func(p bulkvalidate.Progress) {
			fmt.Printf("progress: %d/%d processed, %d compliant, eta %s\n", p.Processed, p.Total, p.Compliant, p.ETA)
		})
		fmt.Printf("done: processed=%d compliant=%d violations=%d cancelled=%v errors=%d\n",
			report.Processed, report.Compliant, report.Violation, report.Cancelled, len(report.Errors))

	case "trigger-sweep":
		fmt.Println("no request is sent; the running wfm-core monitor role runs its batch sweep on its own schedule")

	default:
		fmt.Fprintf(os.Stderr, "unknown or missing -cmd %q (want validate-one|validate-batch|trigger-sweep)\n", cmd)
		os.Exit(1)
	}
}
