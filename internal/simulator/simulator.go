package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Reading is one sampled row of the synthetic dataset: the five sensor
// channels plus the derived health score and failure flag for one machine at
// one grid instant.
type Reading struct {
	MachineID    int
	Timestamp    time.Time
	TempC        float64
	VibrationMS2 float64
	PressurePSI  float64
	LoadPct      float64
	RPM          float64
	HealthScore  float64
	Failed       int
}

// Options control one generation run. The zero value is not runnable; use
// Normalize or fill every field.
type Options struct {
	Machines int
	Days     int
	Step     time.Duration
	Seed     int64
	Start    time.Time
	Workers  int

	// OnProgress, when set, is invoked once per completed machine, serially
	// and in completion order, with (machinesDone, machinesTotal).
	OnProgress func(done, total int)
}

// DefaultStart is the first grid instant when Options.Start is zero.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Normalize fills unset fields with the standard run shape: 50 machines over
// 60 days at 10 minute resolution, seed 42.
func (o Options) Normalize() Options {
	if o.Machines <= 0 {
		o.Machines = 50
	}
	if o.Days <= 0 {
		o.Days = 60
	}
	if o.Step <= 0 {
		o.Step = 10 * time.Minute
	}
	if o.Start.IsZero() {
		o.Start = DefaultStart
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

func (o Options) validate() error {
	if o.Machines <= 0 {
		return fmt.Errorf("machines must be positive, got %d", o.Machines)
	}
	if o.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", o.Days)
	}
	if o.Step <= 0 {
		return fmt.Errorf("step must be positive, got %s", o.Step)
	}
	if o.Start.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}

// Steps returns the grid length: every multiple of Step from Start through
// Start+Days, end instant included.
func (o Options) Steps() int {
	total := time.Duration(o.Days) * 24 * time.Hour
	return int(total/o.Step) + 1
}

// machineSeed derives an independent seed per machine from the base seed.
// This is what keeps output identical across worker counts: each machine owns
// a private RNG stream, so scheduling order cannot leak into the data.
func machineSeed(base int64, machineID int) int64 {
	const gamma = 0x9E3779B97F4A7C15 // golden-ratio increment, splitmix-style
	return int64(uint64(base) + uint64(machineID+1)*gamma)
}

// Generate produces the full sorted dataset for opts: machine 0..Machines-1,
// each over the shared time grid, failure flags derived. Machines are
// simulated concurrently by at most Workers goroutines; a fixed seed yields
// byte-identical output regardless of the worker count.
func Generate(ctx context.Context, opts Options) ([]Reading, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation options: %w", err)
	}

	steps := opts.Steps()
	grid := make([]time.Time, steps)
	for i := range grid {
		grid[i] = opts.Start.Add(time.Duration(i) * opts.Step)
	}

	perMachine := make([][]Reading, opts.Machines)
	sem := make(chan struct{}, opts.Workers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for m := 0; m < opts.Machines; m++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			rng := rand.New(rand.NewSource(machineSeed(opts.Seed, id)))
			perMachine[id] = simulateMachine(id, grid, rng)

			mu.Lock()
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(done, opts.Machines)
			}
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]Reading, 0, opts.Machines*steps)
	for _, machineRows := range perMachine {
		rows = append(rows, machineRows...)
	}

	DeriveFailures(rows)
	return rows, nil
}

// simulateMachine draws one machine's parameters and walks the grid once.
// The RNG consumption order is fixed (parameters first, then one noise tuple
// per step); changing it changes every dataset a given seed produces.
func simulateMachine(machineID int, grid []time.Time, rng *rand.Rand) []Reading {
	p := drawMachineParams(rng)

	steps := len(grid)
	rows := make([]Reading, steps)

	health := 1.0
	for t := 0; t < steps; t++ {
		drift := 0.0
		if steps > 1 {
			drift = float64(t) / float64(steps-1)
		}

		temp := p.baseTemp + p.tempDriftMax*drift + rng.NormFloat64()*tempNoiseSigma
		vibration := p.baseVibration + p.vibDriftMax*drift + rng.NormFloat64()*vibNoiseSigma
		pressure := p.basePressure + rng.NormFloat64()*pressureNoiseSigma
		load := clamp(p.baseLoad+rng.NormFloat64()*loadNoiseSigma, loadMin, loadMax)
		rpm := clamp(p.baseRPM+rng.NormFloat64()*rpmNoiseSigma, rpmMin, rpmMax)

		// The first instant is pristine; wear starts accruing at t=1 and
		// stress is read off the current step's (clamped) signals.
		if t > 0 {
			health = health - (p.baseWearRate + stressIncrement(temp, vibration, load))
			if health < 0 {
				health = 0
			}
		}

		rows[t] = Reading{
			MachineID:    machineID,
			Timestamp:    grid[t],
			TempC:        temp,
			VibrationMS2: vibration,
			PressurePSI:  pressure,
			LoadPct:      load,
			RPM:          rpm,
			HealthScore:  health,
		}
	}

	return rows
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
