package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Model is the fitted binary classifier stored in the artifact: a logistic
// regression parameterized by an intercept and one coefficient per feature.
type Model struct {
	Type         string    `json:"type"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Artifact bundles the fitted model with the ordered feature names it was
// trained on. Coefficients[i] pairs with FeatureCols[i]. Loaded once at
// startup and treated as immutable afterwards.
type Artifact struct {
	Model       Model    `json:"model"`
	FeatureCols []string `json:"feature_cols"`
}

// Load reads and validates an artifact file. Any failure here is fatal to the
// caller: serving predictions without a usable model is worse than not starting.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}

	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}

	return &a, nil
}

func (a *Artifact) validate() error {
	if len(a.FeatureCols) == 0 {
		return fmt.Errorf("feature_cols is empty")
	}
	if len(a.Model.Coefficients) != len(a.FeatureCols) {
		return fmt.Errorf("coefficient count %d does not match feature count %d",
			len(a.Model.Coefficients), len(a.FeatureCols))
	}
	for i, c := range a.Model.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d (%s) is not finite", i, a.FeatureCols[i])
		}
	}
	if math.IsNaN(a.Model.Intercept) || math.IsInf(a.Model.Intercept, 0) {
		return fmt.Errorf("intercept is not finite")
	}
	return nil
}

// FeatureCount returns the number of features the model expects.
func (a *Artifact) FeatureCount() int {
	return len(a.FeatureCols)
}

// PredictProba scores a dense feature vector and returns the positive-class
// probability. The vector must already be in FeatureCols order; length
// mismatches are a programming error on the caller's side.
func (a *Artifact) PredictProba(x []float64) (float64, error) {
	if len(x) != len(a.Model.Coefficients) {
		return 0, fmt.Errorf("feature vector length %d does not match model dimension %d",
			len(x), len(a.Model.Coefficients))
	}

	z := a.Model.Intercept
	for i, w := range a.Model.Coefficients {
		z += w * x[i]
	}

	// Logistic link. IEEE semantics keep the extremes well-behaved:
	// exp overflow saturates the probability at 0 or 1.
	return 1.0 / (1.0 + math.Exp(-z)), nil
}
