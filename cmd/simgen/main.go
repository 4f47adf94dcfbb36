package main

import (
	"context"
	"flag"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"predmaint/internal/simulator"
	"predmaint/pkg/logger"
)

// simgen generates a synthetic degradation dataset without going through the
// server: same simulator, same CSV schema, one shot.
func main() {
	machines := flag.Int("machines", 50, "number of machines to simulate")
	days := flag.Int("days", 60, "number of simulated days")
	stepMinutes := flag.Int("step", 10, "sampling interval in minutes")
	seed := flag.Int64("seed", 42, "base RNG seed")
	start := flag.String("start", "2024-01-01", "first grid instant (YYYY-MM-DD, UTC)")
	out := flag.String("out", "synthetic_sensor_data.csv", "output CSV path")
	workers := flag.Int("workers", 4, "machines generated concurrently")
	flag.Parse()

	if *machines <= 0 || *days <= 0 || *stepMinutes <= 0 || *workers <= 0 {
		logger.Fatalf("machines, days, step and workers must all be positive")
	}

	startTime, err := time.ParseInLocation("2006-01-02", *start, time.UTC)
	if err != nil {
		logger.Fatalf("invalid start date %q, expected YYYY-MM-DD", *start)
	}

	opts := simulator.Options{
		Machines: *machines,
		Days:     *days,
		Step:     time.Duration(*stepMinutes) * time.Minute,
		Seed:     *seed,
		Start:    startTime,
		Workers:  *workers,
		OnProgress: func(done, total int) {
			if done%10 == 0 || done == total {
				logger.Infof("progress: %d/%d machines", done, total)
			}
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Infof("simulating %d machines, %d time steps each", opts.Machines, opts.Steps())

	started := time.Now()
	rows, err := simulator.Generate(ctx, opts)
	if err != nil {
		logger.Fatalf("generation failed: %v", err)
	}

	if err := simulator.WriteCSV(*out, rows); err != nil {
		logger.Fatalf("failed to write dataset: %v", err)
	}

	summary := simulator.Summarize(rows)

	ids := make([]int, 0, len(summary.PerMachine))
	for id := range summary.PerMachine {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	logger.Infof("failure events per machine:")
	for _, id := range ids {
		logger.Infof("  machine %3d: %d", id, summary.PerMachine[id])
	}

	logger.Infof("rows: %d, failure events: %d, elapsed: %s",
		summary.Rows, summary.FailureEvents, time.Since(started).Round(time.Millisecond))
	logger.Infof("saved synthetic sensor data to: %s", *out)
}
