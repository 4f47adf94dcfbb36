package simulator

import "math/rand"

// Sensor noise and operating envelope constants. Temperature and pressure are
// deliberately unclamped: extreme excursions stay visible in the data, which
// is what drives the stress thresholds below.
const (
	tempNoiseSigma     = 1.5
	vibNoiseSigma      = 0.2
	pressureNoiseSigma = 5.0
	loadNoiseSigma     = 5.0
	rpmNoiseSigma      = 40.0

	loadMin = 10.0
	loadMax = 110.0
	rpmMin  = 800.0
	rpmMax  = 2200.0
)

// machineParams are the per-machine baseline draws. Every machine gets its own
// operating point and wear rate, so fleets show realistic spread.
type machineParams struct {
	baseTemp      float64 // degC
	baseVibration float64 // m/s^2
	basePressure  float64 // psi
	baseLoad      float64 // percent
	baseRPM       float64

	tempDriftMax float64 // total temperature rise over the run
	vibDriftMax  float64 // total vibration rise over the run

	baseWearRate float64 // health lost per step even under mild stress
}

func drawMachineParams(rng *rand.Rand) machineParams {
	return machineParams{
		baseTemp:      uniform(rng, 45, 55),
		baseVibration: uniform(rng, 0.8, 1.2),
		basePressure:  uniform(rng, 260, 320),
		baseLoad:      uniform(rng, 50, 70),
		baseRPM:       uniform(rng, 1500, 1900),
		tempDriftMax:  uniform(rng, 8, 18),
		vibDriftMax:   uniform(rng, 0.3, 0.7),
		baseWearRate:  uniform(rng, 0.00015, 0.0003),
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// stressIncrement accumulates the degradation contributions of the current
// step's signals. Thresholds are strict and additive: a 90 degC reading pays
// all three temperature tiers at once.
func stressIncrement(temp, vibration, load float64) float64 {
	stress := 0.0

	if temp > 65 {
		stress += 0.005
	}
	if temp > 75 {
		stress += 0.010
	}
	if temp > 85 {
		stress += 0.015
	}

	if vibration > 1.8 {
		stress += 0.007
	}
	if vibration > 2.2 {
		stress += 0.012
	}
	if vibration > 2.6 {
		stress += 0.018
	}

	if load > 80 {
		stress += 0.005
	}
	if load > 90 {
		stress += 0.010
	}

	return stress
}
