// fleet-monitor stores miner health samples in SQLite, derives hourly
// rollups and fleet analytics, and serves them over a JSON API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/internal/obs"
	"github.com/mtab3000/simple-monitor/pkg/analytics"
	"github.com/mtab3000/simple-monitor/pkg/database"
	"github.com/mtab3000/simple-monitor/pkg/ingest"
	"github.com/mtab3000/simple-monitor/pkg/retention"
	"github.com/mtab3000/simple-monitor/pkg/rollup"
)

const usage = `fleet-monitor - Miner metrics storage and analytics

Usage:
  fleet-monitor <command> [arguments]

Commands:
  daemon               Serve the API and run background rollup/retention
                       (use Ctrl+C to stop)

  rollup               Recompute hourly rollups for the last 25 hours

  status               Print the latest sample per active miner

  analyze <ip>         Print the full analytics report for one miner
                       Example: fleet-monitor analyze 10.0.0.5

  cleanup              Prune aged raw samples and resolved alerts

Environment Variables:
  MONITOR_DB           SQLite database path (default: monitor.db)
  MONITOR_LISTEN       API listen address (default: :8093)
  ROLLUP_INTERVAL      Background rollup cadence (default: 15m)
  SNAPSHOT_INTERVAL    Fleet snapshot cadence (default: 5m)
  CLEANUP_INTERVAL     Retention cadence (default: 6h)
  RAW_RETENTION_DAYS   Raw sample horizon (default: 30)
  ALERT_RETENTION_DAYS Resolved alert horizon (default: 60)
`

// app wires the store and the components around it.
type app struct {
	cfg        *Config
	repo       *database.SQLiteRepository
	pipeline   *ingest.Pipeline
	rollups    *rollup.Engine
	analyzer   *analytics.Analyzer
	maintainer *retention.Maintainer
	registry   *prometheus.Registry
	logger     *zap.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cfg := LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	repo, err := database.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	registry := prometheus.NewRegistry()
	metrics := obs.New(registry)

	engine := rollup.NewEngine(repo, logger, metrics)
	maintainer := retention.NewMaintainer(repo, logger, metrics)
	maintainer.RawRetention = time.Duration(cfg.RawRetentionDays) * 24 * time.Hour
	maintainer.AlertRetention = time.Duration(cfg.AlertRetentionDays) * 24 * time.Hour

	a := &app{
		cfg:        cfg,
		repo:       repo,
		pipeline:   ingest.NewPipeline(repo, logger, metrics),
		rollups:    engine,
		analyzer:   analytics.NewAnalyzer(repo, engine, logger),
		maintainer: maintainer,
		registry:   registry,
		logger:     logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Received shutdown signal...")
		cancel()
	}()

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		a.runDaemon(ctx)
	case "rollup":
		runRollup(ctx, a)
	case "status":
		runStatus(ctx, a)
	case "analyze":
		runAnalyze(ctx, a)
	case "cleanup":
		runCleanup(ctx, a)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runRollup(ctx context.Context, a *app) {
	start := time.Now()
	if err := a.rollups.Run(ctx, time.Time{}); err != nil {
		log.Fatalf("Rollup failed: %v", err)
	}
	log.Printf("Rollup completed in %s", time.Since(start).Round(time.Millisecond))
}

func runStatus(ctx context.Context, a *app) {
	current, err := a.repo.LatestSamples(ctx)
	if err != nil {
		log.Fatalf("Status failed: %v", err)
	}

	for _, c := range current {
		fmt.Printf("%-15s %-16s %-18s %8.1f GH/s %6.1f°C %7.1f W  up %.1fh\n",
			c.Miner.IPAddress, c.Miner.Hostname, c.Sample.Status,
			c.Sample.HashrateGHS, c.Sample.TempASIC, c.Sample.PowerW,
			c.Sample.UptimeHours)
	}

	summary, err := a.pipeline.FleetSummary(ctx)
	if err != nil {
		log.Fatalf("Fleet summary failed: %v", err)
	}
	fmt.Printf("\nFleet: %d/%d online, %.1f GH/s, %.1f W, %.1f J/TH\n",
		summary.OnlineMiners, summary.TotalMiners,
		summary.TotalHashrateGHS, summary.TotalPowerW, summary.FleetEfficiency)
}

func runAnalyze(ctx context.Context, a *app) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: IP address required")
		fmt.Fprintln(os.Stderr, "Usage: fleet-monitor analyze <ip>")
		os.Exit(1)
	}

	miner, err := a.repo.GetMinerByIP(ctx, os.Args[2])
	if err != nil {
		log.Fatalf("Analyze failed: %v", err)
	}
	if miner == nil {
		log.Fatalf("Unknown miner: %s", os.Args[2])
	}

	report := map[string]interface{}{}
	if score, err := a.analyzer.EfficiencyScore(ctx, miner.ID, a.cfg.TrendHours); err == nil {
		report["efficiency_score"] = score
	}
	if anomalies, err := a.analyzer.DetectAnomalies(ctx, miner.ID, a.cfg.TrendHours); err == nil {
		report["anomalies"] = anomalies
	}
	if growth, err := a.analyzer.GrowthMetrics(ctx, miner.ID, a.cfg.GrowthDays); err == nil {
		report["growth"] = growth
	}
	if maintenance, err := a.analyzer.PredictMaintenance(ctx, miner.ID); err == nil {
		report["maintenance"] = maintenance
	}
	if settings, err := a.analyzer.OptimalSettings(ctx, miner.ID); err == nil {
		report["optimal_settings"] = settings
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
	fmt.Println(string(out))
}

func runCleanup(ctx context.Context, a *app) {
	if err := a.maintainer.Run(ctx); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	log.Println("Cleanup completed")
}
