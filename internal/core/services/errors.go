package services

import "errors"

var (
	ErrEngineNotReady         = errors.New("engine is not ready")
	ErrAlreadyTraining        = errors.New("training is already running")
	ErrNotTraining            = errors.New("training is not running")
	ErrNotPaused              = errors.New("training is not paused")
	ErrUnknownStrategy        = errors.New("unknown aggregation strategy")
	ErrIncompatibleParameters = errors.New("incompatible parameter set")
	ErrCheckpointExists       = errors.New("checkpoint already exists")
	ErrCheckpointNotFound     = errors.New("checkpoint not found")
	ErrRestoreWhileTraining   = errors.New("cannot restore parameters while training is running")
)
