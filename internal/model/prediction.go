package model

// PredictRequest is the body of POST /predict_24h. Keys are engineered
// feature names; values are the feature values. Names the model does not know
// are ignored, known names that are absent default to 0.0.
type PredictRequest struct {
	Features map[string]float64 `json:"features" binding:"required"`
}

// PredictResponse is the scored result: positive-class probability rounded to
// three decimals plus the rule-based maintenance recommendation.
type PredictResponse struct {
	FailureProbability24h float64 `json:"failure_probability_24h"`
	Recommendation        string  `json:"recommendation"`
}

// RootResponse is the health-check body of GET /.
type RootResponse struct {
	Message            string `json:"message"`
	ModelFeaturesCount int    `json:"model_features_count"`
}

// SamplePayloadResponse shows callers which feature keys the model expects.
type SamplePayloadResponse struct {
	Note            string             `json:"note"`
	FeaturesExample map[string]float64 `json:"features_example"`
}
