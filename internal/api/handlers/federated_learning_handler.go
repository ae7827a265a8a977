package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agisfl/agisfl-server/internal/api/models"
	coremodels "github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
	"github.com/agisfl/agisfl-server/internal/core/services"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

const recentHistoryLimit = 10

type FederatedLearningHandler struct {
	engine        ports.Engine
	restorer      ports.Checkpointable
	checkpoints   ports.CheckpointStore
	defaultRounds uint
}

func NewFederatedLearningHandler(engine ports.Engine, restorer ports.Checkpointable, checkpoints ports.CheckpointStore, defaultRounds uint) *FederatedLearningHandler {
	if defaultRounds == 0 {
		defaultRounds = 50
	}
	return &FederatedLearningHandler{
		engine:        engine,
		restorer:      restorer,
		checkpoints:   checkpoints,
		defaultRounds: defaultRounds,
	}
}

// statusFromError maps service sentinels onto HTTP statuses. Lifecycle
// conflicts are 409s, bad input is a 400, and an engine that never became
// ready is a 503.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrAlreadyTraining),
		errors.Is(err, services.ErrNotTraining),
		errors.Is(err, services.ErrNotPaused),
		errors.Is(err, services.ErrRestoreWhileTraining),
		errors.Is(err, services.ErrCheckpointExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnknownStrategy),
		errors.Is(err, services.ErrIncompatibleParameters):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *FederatedLearningHandler) StartTraining(c *gin.Context) {
	log := logger.WithComponent("fl_handler")

	var req models.StartTrainingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Error().Err(err).Msg("Invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if req.Rounds == 0 {
		req.Rounds = h.defaultRounds
	}
	if req.Seed != nil {
		h.engine.Reseed(*req.Seed)
	}

	if err := h.engine.Start(req.Rounds, req.Strategy); err != nil {
		log.Error().Err(err).Msg("Failed to start training")
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	log.Info().Uint("rounds", req.Rounds).Str("strategy", req.Strategy).Msg("Training started")
	c.JSON(http.StatusAccepted, models.MessageResponse{Message: "training started"})
}

func (h *FederatedLearningHandler) StopTraining(c *gin.Context) {
	if err := h.engine.Stop(); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "stop requested"})
}

func (h *FederatedLearningHandler) PauseTraining(c *gin.Context) {
	if err := h.engine.Pause(); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "training paused"})
}

func (h *FederatedLearningHandler) ResumeTraining(c *gin.Context) {
	if err := h.engine.Resume(); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "training resumed"})
}

func (h *FederatedLearningHandler) GetStatus(c *gin.Context) {
	state := h.engine.Status()
	history := h.engine.History(0)

	recent := history
	if len(recent) > recentHistoryLimit {
		recent = recent[len(recent)-recentHistoryLimit:]
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		State:       state,
		TotalRounds: len(history),
		Metrics: models.TrainingMetrics{
			Accuracy:      state.GlobalAccuracy,
			Loss:          1 - state.GlobalAccuracy,
			ActiveWorkers: state.WorkerCount,
		},
		RecentHistory: recent,
	})
}

func (h *FederatedLearningHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	history := h.engine.History(limit)
	if history == nil {
		history = []coremodels.RoundRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *FederatedLearningHandler) ListStrategies(c *gin.Context) {
	strategies, active := h.engine.Strategies()
	c.JSON(http.StatusOK, models.StrategiesResponse{Strategies: strategies, Active: active})
}

func (h *FederatedLearningHandler) SetStrategy(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategy name is required"})
		return
	}

	if err := h.engine.SetStrategy(name); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	log := logger.WithComponent("fl_handler")
	log.Info().Str("strategy", name).Msg("Aggregation strategy changed")
	c.JSON(http.StatusOK, models.MessageResponse{Message: "strategy set to " + name})
}

func (h *FederatedLearningHandler) Evaluate(c *gin.Context) {
	report, err := h.engine.EvaluateAll(c.Request.Context())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *FederatedLearningHandler) SaveCheckpoint(c *gin.Context) {
	log := logger.WithComponent("fl_handler")

	var req models.SaveCheckpointRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Error().Err(err).Msg("Invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	meta, err := h.checkpoints.Save(c.Request.Context(), req.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save checkpoint")
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, models.CheckpointResponse{Checkpoint: meta})
}

func (h *FederatedLearningHandler) ListCheckpoints(c *gin.Context) {
	metas, err := h.checkpoints.List(c.Request.Context())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	if metas == nil {
		metas = []coremodels.CheckpointMeta{}
	}
	c.JSON(http.StatusOK, models.CheckpointListResponse{Checkpoints: metas})
}

func (h *FederatedLearningHandler) RestoreCheckpoint(c *gin.Context) {
	log := logger.WithComponent("fl_handler")

	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkpoint path is required"})
		return
	}

	params, err := h.checkpoints.Load(c.Request.Context(), req.Path)
	if err != nil {
		log.Error().Err(err).Str("path", req.Path).Msg("Failed to load checkpoint")
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	if err := h.restorer.Restore(params); err != nil {
		log.Error().Err(err).Str("path", req.Path).Msg("Failed to restore checkpoint")
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("path", req.Path).Msg("Checkpoint restored")
	c.JSON(http.StatusOK, models.MessageResponse{Message: "checkpoint restored"})
}
