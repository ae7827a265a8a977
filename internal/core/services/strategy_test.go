package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agisfl/agisfl-server/internal/core/models"
)

func TestStrategyRegistry(t *testing.T) {
	registry := NewStrategyRegistry()

	t.Run("builtin strategies are registered", func(t *testing.T) {
		fedAvg, err := registry.Get(StrategyFedAvg)
		require.NoError(t, err)
		assert.Equal(t, StrategyFedAvg, fedAvg.Name())

		fedProx, err := registry.Get(StrategyFedProx)
		require.NoError(t, err)
		assert.Equal(t, StrategyFedProx, fedProx.Name())
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := registry.Get("FedNope")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		infos := registry.List()
		require.Len(t, infos, 2)
		assert.Equal(t, StrategyFedAvg, infos[0].Name)
		assert.Equal(t, StrategyFedProx, infos[1].Name)
	})
}

func TestFedAvgAggregate(t *testing.T) {
	s := &FedAvgStrategy{}

	t.Run("weighted mean by sample count", func(t *testing.T) {
		updates := []models.Update{
			{
				WorkerID:    "w0",
				Parameters:  models.ParameterSet{"linear.weight": {1, 2}},
				SampleCount: 3,
				Accuracy:    0.6,
			},
			{
				WorkerID:    "w1",
				Parameters:  models.ParameterSet{"linear.weight": {4, 8}},
				SampleCount: 1,
				Accuracy:    0.8,
			},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())

		// (1*3 + 4*1) / 4 and (2*3 + 8*1) / 4
		assert.InDelta(t, 1.75, result.Parameters["linear.weight"][0], 1e-9)
		assert.InDelta(t, 3.5, result.Parameters["linear.weight"][1], 1e-9)
		assert.Equal(t, uint(4), result.SampleCount)
		assert.InDelta(t, 0.7, result.Accuracy, 1e-9)
	})

	t.Run("all-zero sample counts fall back to unweighted mean", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {2}}},
			{WorkerID: "w1", Parameters: models.ParameterSet{"b": {4}}},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())
		assert.InDelta(t, 3, result.Parameters["b"][0], 1e-9)
		assert.Equal(t, uint(0), result.SampleCount)
	})

	t.Run("empty input yields empty result", func(t *testing.T) {
		result := s.Aggregate(nil)
		assert.True(t, result.Empty())
	})

	t.Run("failed and parameterless updates are excluded", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {1}}, SampleCount: 5, Accuracy: 0.5},
			{WorkerID: "w1", SampleCount: 5, Error: "training panic"},
			{WorkerID: "w2", SampleCount: 5},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())
		assert.InDelta(t, 1, result.Parameters["b"][0], 1e-9)
		assert.Equal(t, uint(5), result.SampleCount)
		assert.InDelta(t, 0.5, result.Accuracy, 1e-9)
	})

	t.Run("heterogeneous keys use per-key contributor totals", func(t *testing.T) {
		updates := []models.Update{
			{
				WorkerID:    "w0",
				Parameters:  models.ParameterSet{"shared": {2}, "only0": {10}},
				SampleCount: 1,
			},
			{
				WorkerID:    "w1",
				Parameters:  models.ParameterSet{"shared": {4}},
				SampleCount: 3,
			},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())

		// shared: (2*1 + 4*3) / 4; only0 carried solely by w0.
		assert.InDelta(t, 3.5, result.Parameters["shared"][0], 1e-9)
		assert.InDelta(t, 10, result.Parameters["only0"][0], 1e-9)
	})

	t.Run("key carried only by zero-sample updates stays finite", func(t *testing.T) {
		updates := []models.Update{
			{
				WorkerID:   "w0",
				Parameters: models.ParameterSet{"only0": {1.5}},
			},
			{
				WorkerID:    "w1",
				Parameters:  models.ParameterSet{"shared": {2}},
				SampleCount: 5,
			},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())

		// The round total is 5, but only0's sole contributor reports zero
		// samples; its tensor must be the plain mean, never NaN.
		require.Contains(t, result.Parameters, "only0")
		assert.False(t, math.IsNaN(result.Parameters["only0"][0]))
		assert.InDelta(t, 1.5, result.Parameters["only0"][0], 1e-9)
		assert.InDelta(t, 2, result.Parameters["shared"][0], 1e-9)
	})

	t.Run("mismatched tensor lengths are skipped", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {1, 2}}, SampleCount: 1},
			{WorkerID: "w1", Parameters: models.ParameterSet{"b": {9}}, SampleCount: 1},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())
		require.Len(t, result.Parameters["b"], 2)
		assert.InDelta(t, 1, result.Parameters["b"][0], 1e-9)
		assert.InDelta(t, 2, result.Parameters["b"][1], 1e-9)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {1}}, SampleCount: 1},
			{WorkerID: "w1", Parameters: models.ParameterSet{"b": {3}}, SampleCount: 1},
		}

		_ = s.Aggregate(updates)
		assert.Equal(t, 1.0, updates[0].Parameters["b"][0])
		assert.Equal(t, 3.0, updates[1].Parameters["b"][0])
	})
}

func TestFedProxAggregate(t *testing.T) {
	s := &FedProxStrategy{Mu: 0.1}

	t.Run("shrinks toward first update", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {0}}, SampleCount: 1},
			{WorkerID: "w1", Parameters: models.ParameterSet{"b": {10}}, SampleCount: 1},
		}

		result := s.Aggregate(updates)
		require.False(t, result.Empty())

		// Weighted mean is 5; shrunk toward w0's 0 by Mu: 5*0.9 + 0*0.1.
		assert.InDelta(t, 4.5, result.Parameters["b"][0], 1e-9)
	})

	t.Run("empty input yields empty result", func(t *testing.T) {
		result := s.Aggregate(nil)
		assert.True(t, result.Empty())
	})

	t.Run("does not mutate first update", func(t *testing.T) {
		updates := []models.Update{
			{WorkerID: "w0", Parameters: models.ParameterSet{"b": {0}}, SampleCount: 1},
			{WorkerID: "w1", Parameters: models.ParameterSet{"b": {10}}, SampleCount: 1},
		}

		_ = s.Aggregate(updates)
		assert.Equal(t, 0.0, updates[0].Parameters["b"][0])
	})
}
