package models

import (
	coremodels "github.com/agisfl/agisfl-server/internal/core/models"
)

type StartTrainingRequest struct {
	Rounds   uint   `json:"rounds"`
	Strategy string `json:"strategy"`
	Seed     *int64 `json:"seed,omitempty"`
}

type SaveCheckpointRequest struct {
	Name string `json:"name"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TrainingMetrics struct {
	Accuracy      float64 `json:"accuracy"`
	Loss          float64 `json:"loss"`
	ActiveWorkers int     `json:"active_workers"`
}

type StatusResponse struct {
	State         coremodels.EngineState   `json:"state"`
	TotalRounds   int                      `json:"total_rounds"`
	Metrics       TrainingMetrics          `json:"metrics"`
	RecentHistory []coremodels.RoundRecord `json:"recent_history"`
}

type StrategiesResponse struct {
	Strategies []coremodels.StrategyInfo `json:"strategies"`
	Active     string                    `json:"active"`
}

type CheckpointResponse struct {
	Checkpoint coremodels.CheckpointMeta `json:"checkpoint"`
}

type CheckpointListResponse struct {
	Checkpoints []coremodels.CheckpointMeta `json:"checkpoints"`
}
