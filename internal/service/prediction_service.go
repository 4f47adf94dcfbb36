package service

import (
	"context"
	"fmt"
	"math"

	"predmaint/internal/model"
	"predmaint/pkg/artifact"
	"predmaint/pkg/logger"
)

// Risk cut points on the 24h failure probability.
const (
	lowRiskBelow  = 0.3
	highRiskFrom  = 0.7
	sampleKeysMax = 10
)

const (
	recommendationLow      = "Low risk: continue normal operation, routine monitoring."
	recommendationModerate = "Moderate risk: schedule inspection in the next maintenance window."
	recommendationHigh     = "High risk: schedule maintenance as soon as possible to avoid unplanned downtime."
)

// PredictionService scores sensor feature vectors against the trained
// 24h failure model.
type PredictionService struct {
	artifact *artifact.Artifact
}

// NewPredictionService creates a new prediction service
func NewPredictionService(art *artifact.Artifact) *PredictionService {
	return &PredictionService{artifact: art}
}

// FeatureCount returns the number of features the loaded model expects
func (s *PredictionService) FeatureCount() int {
	return s.artifact.FeatureCount()
}

// Predict scores one feature map. Features are assembled into a vector in the
// model's training column order; keys the model never saw are ignored and
// missing keys contribute 0.0, so callers can send partial readings.
func (s *PredictionService) Predict(ctx context.Context, req *model.PredictRequest) (*model.PredictResponse, error) {
	vector := make([]float64, len(s.artifact.FeatureCols))
	for i, col := range s.artifact.FeatureCols {
		vector[i] = req.Features[col]
	}

	proba, err := s.artifact.PredictProba(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to score features: %w", err)
	}

	logger.DebugCtx(ctx, "prediction scored, probability: %.3f, features_given: %d", proba, len(req.Features))

	// The recommendation is decided on the exact probability; only the
	// reported number is rounded.
	return &model.PredictResponse{
		FailureProbability24h: math.Round(proba*1000) / 1000,
		Recommendation:        recommendationFor(proba),
	}, nil
}

// SamplePayload returns an example request body built from the model's own
// feature names, capped at the first few columns.
func (s *PredictionService) SamplePayload() *model.SamplePayloadResponse {
	example := make(map[string]float64)
	for i, col := range s.artifact.FeatureCols {
		if i >= sampleKeysMax {
			break
		}
		example[col] = 0.0
	}

	return &model.SamplePayloadResponse{
		Note:            "Use these feature keys in the 'features' dict when POSTing to /predict_24h.",
		FeaturesExample: example,
	}
}

func recommendationFor(probability float64) string {
	switch {
	case probability < lowRiskBelow:
		return recommendationLow
	case probability < highRiskFrom:
		return recommendationModerate
	default:
		return recommendationHigh
	}
}
