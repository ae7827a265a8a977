package ports

import (
	"context"

	"github.com/agisfl/agisfl-server/internal/core/models"
)

// Trainer is the base capability every worker implements: local training
// against a supplied global parameter snapshot, and a read-only evaluation
// pass. Train must never panic across the call boundary; failures are
// reported through Update.Error.
type Trainer interface {
	ID() string
	SampleCount() uint
	Train(ctx context.Context, global models.ParameterSet, epochs, batchSize int) models.Update
	Evaluate(params models.ParameterSet) (correct, total int, err error)
}

// Strategy reduces a round's updates into a single aggregated result. It
// must not mutate its input and must tolerate empty input, all-zero sample
// counts, and heterogeneous parameter key sets.
type Strategy interface {
	Name() string
	Description() string
	Aggregate(updates []models.Update) models.AggregationResult
}

// EventEmitter is the engine's only event side channel. Emit must return
// promptly regardless of subscriber behavior.
type EventEmitter interface {
	Emit(event models.Event)
}

// Checkpointable is the snapshot capability of the engine-level parameter
// store, consumed by the checkpoint service.
type Checkpointable interface {
	Checkpoint() (models.ParameterSet, models.EngineState, int)
	Restore(params models.ParameterSet) error
}

// CheckpointStore persists and restores parameter snapshots plus metadata.
type CheckpointStore interface {
	Save(ctx context.Context, name string) (models.CheckpointMeta, error)
	Load(ctx context.Context, path string) (models.ParameterSet, error)
	List(ctx context.Context) ([]models.CheckpointMeta, error)
}

// Uploader mirrors checkpoint artifacts to remote storage.
type Uploader interface {
	UploadCheckpoint(ctx context.Context, filename string, data []byte) (string, error)
}

// Engine is the control surface consumed by the transport layer.
type Engine interface {
	Start(rounds uint, strategy string) error
	Pause() error
	Resume() error
	Stop() error
	SetStrategy(name string) error
	Strategies() ([]models.StrategyInfo, string)
	Status() models.EngineState
	History(limit int) []models.RoundRecord
	EvaluateAll(ctx context.Context) (models.EvaluationReport, error)
	Reseed(seed int64)
	Shutdown(ctx context.Context)
}
