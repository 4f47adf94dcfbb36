package handler

import (
	"net/http"

	"predmaint/internal/model"
	"predmaint/internal/service"
	"predmaint/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PredictHandler handles model scoring requests
type PredictHandler struct {
	predictionService *service.PredictionService
}

// NewPredictHandler creates predict handler
func NewPredictHandler(predictionService *service.PredictionService) *PredictHandler {
	return &PredictHandler{
		predictionService: predictionService,
	}
}

// Root reports service status
// @Summary Service status
// @Description Confirms the API is up and reports how many features the loaded model expects
// @Tags predictions
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router / [get]
func (h *PredictHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, &model.RootResponse{
		Message:            "Predictive Maintenance API is running.",
		ModelFeaturesCount: h.predictionService.FeatureCount(),
	})
}

// Predict scores a feature vector
// @Summary Predict 24h failure probability
// @Description Scores a 'features' dict against the trained model; missing features default to 0.0
// @Tags predictions
// @Accept json
// @Produce json
// @Param request body model.PredictRequest true "Feature vector"
// @Success 200 {object} model.PredictResponse
// @Router /predict_24h [post]
func (h *PredictHandler) Predict(c *gin.Context) {
	var req model.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.ErrorCtx(c.Request.Context(), "invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.predictionService.Predict(c.Request.Context(), &req)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to score features: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SamplePayload returns an example request body
// @Summary Sample prediction payload
// @Description Returns the model's feature names in an example /predict_24h request body
// @Tags predictions
// @Produce json
// @Success 200 {object} model.SamplePayloadResponse
// @Router /sample_payload [get]
func (h *PredictHandler) SamplePayload(c *gin.Context) {
	c.JSON(http.StatusOK, h.predictionService.SamplePayload())
}
