package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

const (
	paramWeightKey = "linear.weight"
	paramBiasKey   = "linear.bias"

	// Large enough that a handful of local epochs moves the model well
	// clear of its random initialization scale.
	defaultLearningRate = 0.1
)

// NewRandomParameters builds the initial global parameter set for the
// logistic model shared by all simulated workers.
func NewRandomParameters(features int, rng *rand.Rand) models.ParameterSet {
	weights := make([]float64, features)
	for i := range weights {
		weights[i] = rng.NormFloat64() * 0.1
	}
	return models.ParameterSet{
		paramWeightKey: weights,
		paramBiasKey:   {0},
	}
}

// SimulatedWorker is an in-process federated participant. It owns a fixed
// private data partition and a local copy of the model parameters, and
// trains a logistic classifier with mini-batch SGD.
type SimulatedWorker struct {
	id        string
	partition Partition
	lr        float64

	mu     sync.Mutex
	params models.ParameterSet
	rng    *rand.Rand
}

func NewSimulatedWorker(id string, partition Partition, features int, seed int64) *SimulatedWorker {
	rng := rand.New(rand.NewSource(seed))
	return &SimulatedWorker{
		id:        id,
		partition: partition,
		lr:        defaultLearningRate,
		params:    NewRandomParameters(features, rng),
		rng:       rng,
	}
}

func (w *SimulatedWorker) ID() string { return w.id }

func (w *SimulatedWorker) SampleCount() uint { return uint(len(w.partition.Features)) }

// Train runs the configured number of local epochs over the worker's
// partition with shuffled mini-batches and returns the resulting update.
// The returned parameters are a deep copy, and any internal failure is
// reported through Update.Error rather than a panic.
func (w *SimulatedWorker) Train(ctx context.Context, global models.ParameterSet, epochs, batchSize int) (update models.Update) {
	log := logger.WithComponent("worker").With().Str("worker_id", w.id).Logger()

	update = models.Update{WorkerID: w.id, SampleCount: w.SampleCount()}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Local training panicked")
			update.Parameters = nil
			update.Loss = nil
			update.Accuracy = 0
			update.Error = fmt.Sprintf("training panic: %v", r)
		}
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	if global != nil {
		if err := w.params.Compatible(global); err == nil {
			w.params = global.Clone()
		} else {
			// Incompatible global snapshot: keep training from the
			// worker's current local parameters.
			log.Warn().Err(err).Msg("Failed to load global parameters")
		}
	}

	if epochs < 1 {
		epochs = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	n := len(w.partition.Features)
	weights := w.params[paramWeightKey]
	bias := w.params[paramBiasKey]

	var (
		totalLoss float64
		batches   int
		correct   int
		total     int
	)
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			update.Error = fmt.Sprintf("training canceled: %v", err)
			return update
		}

		perm := w.rng.Perm(n)
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			batch := perm[start:end]

			gradW := make([]float64, len(weights))
			var gradB, batchLoss float64
			for _, idx := range batch {
				x := w.partition.Features[idx]
				y := float64(w.partition.Labels[idx])

				p := sigmoid(dot(weights, x) + bias[0])
				batchLoss += logLoss(p, y)
				if (p >= 0.5) == (y == 1) {
					correct++
				}
				total++

				diff := p - y
				for j, xj := range x {
					gradW[j] += diff * xj
				}
				gradB += diff
			}

			scale := w.lr / float64(len(batch))
			for j := range weights {
				weights[j] -= scale * gradW[j]
			}
			bias[0] -= scale * gradB

			totalLoss += batchLoss / float64(len(batch))
			batches++
		}
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}
	avgLoss := 0.0
	if batches > 0 {
		avgLoss = totalLoss / float64(batches)
	}

	update.Parameters = w.params.Clone()
	update.Loss = &avgLoss
	update.Accuracy = accuracy
	return update
}

// Evaluate runs a read-only pass over the worker's partition using the
// supplied parameters. Worker state is never touched.
func (w *SimulatedWorker) Evaluate(params models.ParameterSet) (int, int, error) {
	weights, ok := params[paramWeightKey]
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing %q", ErrIncompatibleParameters, paramWeightKey)
	}
	bias, ok := params[paramBiasKey]
	if !ok || len(bias) == 0 {
		return 0, 0, fmt.Errorf("%w: missing %q", ErrIncompatibleParameters, paramBiasKey)
	}

	correct := 0
	for i, x := range w.partition.Features {
		if len(x) != len(weights) {
			return 0, 0, fmt.Errorf("%w: weight length %d, feature length %d",
				ErrIncompatibleParameters, len(weights), len(x))
		}
		p := sigmoid(dot(weights, x) + bias[0])
		if (p >= 0.5) == (w.partition.Labels[i] == 1) {
			correct++
		}
	}
	return correct, len(w.partition.Features), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func logLoss(p, y float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
