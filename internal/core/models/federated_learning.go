package models

import (
	"fmt"
	"time"
)

// ParameterSet is the global model state exchanged between the engine and
// workers: a mapping of parameter name to a flat tensor. Instances are
// treated as immutable once produced for a round; use Clone before handing
// one across a goroutine boundary.
type ParameterSet map[string][]float64

func (p ParameterSet) Clone() ParameterSet {
	if p == nil {
		return nil
	}
	out := make(ParameterSet, len(p))
	for k, v := range p {
		cp := make([]float64, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Compatible reports whether other carries exactly the same parameter keys
// with the same tensor lengths.
func (p ParameterSet) Compatible(other ParameterSet) error {
	if len(p) != len(other) {
		return fmt.Errorf("parameter count mismatch: have %d, want %d", len(other), len(p))
	}
	for k, v := range p {
		ov, ok := other[k]
		if !ok {
			return fmt.Errorf("missing parameter %q", k)
		}
		if len(ov) != len(v) {
			return fmt.Errorf("parameter %q length mismatch: have %d, want %d", k, len(ov), len(v))
		}
	}
	return nil
}

// Update is one worker's reported training result for a round. An update
// with nil Parameters or a non-empty Error is excluded from aggregation but
// still counted for diagnostics.
type Update struct {
	WorkerID    string       `json:"worker_id"`
	Parameters  ParameterSet `json:"parameters,omitempty"`
	SampleCount uint         `json:"sample_count"`
	Loss        *float64     `json:"loss,omitempty"`
	Accuracy    float64      `json:"accuracy"`
	Error       string       `json:"error,omitempty"`
}

func (u *Update) Valid() bool {
	return u.Error == "" && len(u.Parameters) > 0
}

// AggregationResult is the reduction of a round's updates. Parameters is nil
// when no valid update contributed.
type AggregationResult struct {
	Parameters  ParameterSet `json:"parameters,omitempty"`
	SampleCount uint         `json:"sample_count"`
	Accuracy    float64      `json:"accuracy"`
}

func (r *AggregationResult) Empty() bool {
	return r == nil || len(r.Parameters) == 0
}

// RoundRecord is one entry of the authoritative training history. Records
// are appended in strictly increasing round order and never mutated.
type RoundRecord struct {
	Round                uint      `json:"round"`
	ParticipatingWorkers int       `json:"participating_workers"`
	Accuracy             float64   `json:"accuracy"`
	Timestamp            time.Time `json:"timestamp"`
}

// EngineState is a snapshot of the engine's externally visible state.
type EngineState struct {
	CurrentRound    uint    `json:"current_round"`
	IsTraining      bool    `json:"is_training"`
	IsReady         bool    `json:"is_ready"`
	CurrentStrategy string  `json:"current_strategy"`
	GlobalAccuracy  float64 `json:"global_accuracy"`
	WorkerCount     int     `json:"worker_count"`
	LastError       string  `json:"last_error,omitempty"`
}

// StrategyInfo describes a registered aggregation strategy.
type StrategyInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SuitableFor []string `json:"suitable_for,omitempty"`
}

// WorkerEvaluation is one worker's result from a global-model evaluation
// pass. Error is set instead of Accuracy when the pass failed.
type WorkerEvaluation struct {
	WorkerID string  `json:"worker_id"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
	Error    string  `json:"error,omitempty"`
}

// EvaluationReport aggregates per-worker evaluations of the global model.
type EvaluationReport struct {
	AverageAccuracy float64            `json:"average_accuracy"`
	PerWorker       []WorkerEvaluation `json:"per_worker"`
}

// CheckpointMeta is the sibling metadata record persisted next to every
// parameter snapshot.
type CheckpointMeta struct {
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	Round         uint      `json:"round"`
	Accuracy      float64   `json:"accuracy"`
	Strategy      string    `json:"strategy"`
	HistoryLength int       `json:"history_length"`
	Path          string    `json:"path"`
}
