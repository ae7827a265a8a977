package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agisfl/agisfl-server/internal/core/config"
	"github.com/agisfl/agisfl-server/internal/core/metrics"
	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

// Engine drives federated training rounds: it selects participants,
// dispatches local training with a per-round timeout, aggregates the
// collected updates with the active strategy, and publishes the result as
// the new global parameter set.
//
// The loop goroutine is the sole writer of the global parameters and the
// training history; control commands only toggle signals under the engine
// mutex. A round with zero valid updates advances CurrentRound but appends
// no history record.
type Engine struct {
	workers  []ports.Trainer
	registry *StrategyRegistry
	emitter  ports.EventEmitter
	sampler  *UniformSampler

	sampleSize    int
	localEpochs   int
	batchSize     int
	roundTimeout  time.Duration
	roundInterval time.Duration

	mu           sync.Mutex
	state        models.EngineState
	globalParams models.ParameterSet
	history      []models.RoundRecord
	paused       bool
	stopped      bool
	stopCh       chan struct{}
	resumeCh     chan struct{}
	loopDone     chan struct{}
}

func NewEngine(
	cfg *config.FLConfig,
	workers []ports.Trainer,
	initial models.ParameterSet,
	registry *StrategyRegistry,
	emitter ports.EventEmitter,
	sampler *UniformSampler,
) *Engine {
	e := &Engine{
		workers:       workers,
		registry:      registry,
		emitter:       emitter,
		sampler:       sampler,
		sampleSize:    cfg.SampleSize,
		localEpochs:   cfg.LocalEpochs,
		batchSize:     cfg.BatchSize,
		roundTimeout:  cfg.RoundTimeoutDuration(),
		roundInterval: cfg.RoundIntervalDuration(),
		globalParams:  initial.Clone(),
		state: models.EngineState{
			CurrentStrategy: StrategyFedAvg,
			IsReady:         len(workers) > 0 && len(initial) > 0,
			WorkerCount:     len(workers),
		},
	}
	metrics.Workers.Set(float64(len(workers)))
	return e
}

// Start begins an asynchronous training run. It is rejected while a run is
// already active and when the engine has no workers; otherwise it returns
// immediately and the loop proceeds independently.
func (e *Engine) Start(rounds uint, strategy string) error {
	log := logger.WithComponent("engine")

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsReady {
		log.Warn().Msg("Start ignored: engine not ready")
		return ErrEngineNotReady
	}
	if e.state.IsTraining {
		log.Warn().Msg("Start ignored: training already running")
		return ErrAlreadyTraining
	}
	if strategy != "" {
		if _, err := e.registry.Get(strategy); err != nil {
			return err
		}
		e.state.CurrentStrategy = strategy
	}

	e.state.IsTraining = true
	e.state.CurrentRound = 0
	e.state.LastError = ""
	e.paused = false
	e.stopped = false
	e.stopCh = make(chan struct{})
	e.resumeCh = newClosedChan()
	e.loopDone = make(chan struct{})

	metrics.Running.Set(1)
	log.Info().Uint("rounds", rounds).Str("strategy", e.state.CurrentStrategy).Msg("Starting training")
	e.emitter.Emit(models.NewEvent(models.EventTrainingStarted, map[string]interface{}{
		"rounds":   rounds,
		"strategy": e.state.CurrentStrategy,
	}))

	go e.run(rounds)
	return nil
}

// Pause prevents the next round from starting; the in-flight round is never
// interrupted.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsTraining {
		return ErrNotTraining
	}
	if e.paused {
		return nil
	}

	e.paused = true
	e.resumeCh = make(chan struct{})
	log := logger.WithComponent("engine")
	log.Info().Msg("Training paused")
	e.emitter.Emit(models.NewEvent(models.EventTrainingPaused, nil))
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsTraining {
		return ErrNotTraining
	}
	if !e.paused {
		return ErrNotPaused
	}

	e.paused = false
	close(e.resumeCh)
	log := logger.WithComponent("engine")
	log.Info().Msg("Training resumed")
	e.emitter.Emit(models.NewEvent(models.EventTrainingResumed, nil))
	return nil
}

// Stop requests a graceful stop. The in-flight round finishes or times out;
// no new round starts afterward. A pending pause is cleared so a paused loop
// can observe the stop and exit.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsTraining {
		return ErrNotTraining
	}
	if !e.stopped {
		e.stopped = true
		close(e.stopCh)
	}
	if e.paused {
		e.paused = false
		close(e.resumeCh)
	}

	log := logger.WithComponent("engine")
	log.Info().Msg("Stop requested")
	e.emitter.Emit(models.NewEvent(models.EventStopRequested, nil))
	return nil
}

func (e *Engine) run(rounds uint) {
	log := logger.WithComponent("engine")

	defer close(e.loopDone)
	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("training loop panic: %v", r)
			e.mu.Lock()
			e.state.LastError = errMsg
			e.state.IsTraining = false
			e.paused = false
			e.mu.Unlock()
			metrics.Running.Set(0)
			log.Error().Str("error", errMsg).Msg("Training loop failed")
			e.emitter.Emit(models.NewEvent(models.EventTrainingFailed, map[string]interface{}{
				"error": errMsg,
			}))
		}
	}()

	for r := uint(1); r <= rounds; r++ {
		if e.waitGate() {
			log.Info().Msg("Training loop stopping")
			break
		}

		e.mu.Lock()
		e.state.CurrentRound = r
		strategyName := e.state.CurrentStrategy
		snapshot := e.globalParams.Clone()
		e.mu.Unlock()

		strat, err := e.registry.Get(strategyName)
		if err != nil {
			strat = &FedAvgStrategy{}
		}

		selected := e.selectWorkers()
		log.Debug().
			Uint("round", r).
			Str("strategy", strat.Name()).
			Int("participants", len(selected)).
			Msg("Starting round")

		updates := e.dispatchTraining(snapshot, selected)
		e.applyRound(r, len(selected), strat.Aggregate(updates))

		select {
		case <-time.After(e.roundInterval):
		case <-e.stopCh:
		}
	}

	e.mu.Lock()
	e.state.IsTraining = false
	e.paused = false
	completed := e.state.CurrentRound
	finalAccuracy := e.state.GlobalAccuracy
	e.mu.Unlock()

	metrics.Running.Set(0)
	log.Info().
		Uint("completed_rounds", completed).
		Float64("final_accuracy", finalAccuracy).
		Msg("Training loop finished")
	e.emitter.Emit(models.NewEvent(models.EventTrainingCompleted, map[string]interface{}{
		"completed_rounds": completed,
		"final_accuracy":   finalAccuracy,
	}))
}

// waitGate blocks while the loop is paused and reports whether a stop was
// observed.
func (e *Engine) waitGate() bool {
	select {
	case <-e.stopCh:
		return true
	default:
	}

	e.mu.Lock()
	gate := e.resumeCh
	e.mu.Unlock()

	select {
	case <-gate:
		select {
		case <-e.stopCh:
			return true
		default:
			return false
		}
	case <-e.stopCh:
		return true
	}
}

func (e *Engine) selectWorkers() []ports.Trainer {
	indices := e.sampler.Sample(e.sampleSize, len(e.workers))
	selected := make([]ports.Trainer, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, e.workers[i])
	}
	return selected
}

// dispatchTraining fans local training out to the selected workers and
// collects whatever updates complete before the round timeout. Each worker
// receives its own copy of the snapshot.
func (e *Engine) dispatchTraining(snapshot models.ParameterSet, selected []ports.Trainer) []models.Update {
	log := logger.WithComponent("engine")

	ctx, cancel := context.WithTimeout(context.Background(), e.roundTimeout)
	defer cancel()

	results := make(chan models.Update, len(selected))
	for _, w := range selected {
		go func(t ports.Trainer) {
			results <- t.Train(ctx, snapshot.Clone(), e.localEpochs, e.batchSize)
		}(w)
	}

	updates := make([]models.Update, 0, len(selected))
	for range selected {
		select {
		case u := <-results:
			if u.Error != "" {
				log.Warn().Str("worker_id", u.WorkerID).Str("error", u.Error).Msg("Worker training failed")
			}
			updates = append(updates, u)
		case <-ctx.Done():
			log.Warn().
				Int("collected", len(updates)).
				Int("selected", len(selected)).
				Msg("Round timed out, proceeding with collected updates")
			return updates
		}
	}
	return updates
}

// applyRound publishes an aggregation result: the global parameter set is
// swapped wholesale, accuracy updated, and a history record appended. An
// empty result leaves everything untouched.
func (e *Engine) applyRound(round uint, participants int, result models.AggregationResult) {
	log := logger.WithComponent("engine")

	if result.Empty() {
		log.Warn().Uint("round", round).Msg("No aggregated update for round")
		return
	}

	e.mu.Lock()
	if err := e.globalParams.Compatible(result.Parameters); err != nil {
		e.state.LastError = fmt.Sprintf("apply aggregated parameters: %v", err)
		e.mu.Unlock()
		log.Error().Err(err).Uint("round", round).Msg("Failed to apply aggregated parameters")
		return
	}
	e.globalParams = result.Parameters.Clone()
	e.state.GlobalAccuracy = result.Accuracy
	e.history = append(e.history, models.RoundRecord{
		Round:                round,
		ParticipatingWorkers: participants,
		Accuracy:             result.Accuracy,
		Timestamp:            time.Now().UTC(),
	})
	e.mu.Unlock()

	metrics.RoundsTotal.Inc()
	log.Info().
		Uint("round", round).
		Int("participants", participants).
		Float64("accuracy", result.Accuracy).
		Msg("Round aggregated")
	e.emitter.Emit(models.NewEvent(models.EventRoundCompleted, map[string]interface{}{
		"round":                 round,
		"participating_workers": participants,
		"accuracy":              result.Accuracy,
	}))
}

// SetStrategy switches the active strategy by name; it takes effect on the
// next round.
func (e *Engine) SetStrategy(name string) error {
	if _, err := e.registry.Get(name); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.CurrentStrategy = name
	e.mu.Unlock()

	log := logger.WithComponent("engine")
	log.Info().Str("strategy", name).Msg("Strategy set")
	e.emitter.Emit(models.NewEvent(models.EventStrategyChanged, map[string]interface{}{
		"strategy": name,
	}))
	return nil
}

func (e *Engine) Strategies() ([]models.StrategyInfo, string) {
	e.mu.Lock()
	current := e.state.CurrentStrategy
	e.mu.Unlock()
	return e.registry.List(), current
}

func (e *Engine) Status() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.state
	state.WorkerCount = len(e.workers)
	return state
}

// History returns the most recent records, oldest first.
func (e *Engine) History(limit int) []models.RoundRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(e.history) {
		start = len(e.history) - limit
	}
	out := make([]models.RoundRecord, len(e.history)-start)
	copy(out, e.history[start:])
	return out
}

// EvaluateAll runs the current global parameters against every worker
// concurrently. Individual failures are recorded per entry; the mean is
// taken over workers that reported an accuracy.
func (e *Engine) EvaluateAll(ctx context.Context) (models.EvaluationReport, error) {
	e.mu.Lock()
	params := e.globalParams.Clone()
	e.mu.Unlock()

	results := make([]models.WorkerEvaluation, len(e.workers))
	g, _ := errgroup.WithContext(ctx)
	for i, w := range e.workers {
		i, w := i, w
		g.Go(func() error {
			ev := models.WorkerEvaluation{WorkerID: w.ID()}
			correct, total, err := w.Evaluate(params)
			if err != nil {
				ev.Error = err.Error()
			} else {
				ev.Correct = correct
				ev.Total = total
				if total > 0 {
					ev.Accuracy = float64(correct) / float64(total)
				}
			}
			results[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.EvaluationReport{}, err
	}

	var sum float64
	reporting := 0
	for _, ev := range results {
		if ev.Error == "" {
			sum += ev.Accuracy
			reporting++
		}
	}
	report := models.EvaluationReport{PerWorker: results}
	if reporting > 0 {
		report.AverageAccuracy = sum / float64(reporting)
	}
	return report, nil
}

func (e *Engine) Reseed(seed int64) {
	e.sampler.Reseed(seed)
}

// Checkpoint returns an immutable snapshot for the checkpoint store.
func (e *Engine) Checkpoint() (models.ParameterSet, models.EngineState, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalParams.Clone(), e.state, len(e.history)
}

// Restore swaps in a previously checkpointed parameter set. It is rejected
// while training is running so it cannot race an in-flight round mutation.
func (e *Engine) Restore(params models.ParameterSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.IsTraining {
		return ErrRestoreWhileTraining
	}
	if err := e.globalParams.Compatible(params); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleParameters, err)
	}
	e.globalParams = params.Clone()
	return nil
}

// Shutdown requests a stop and waits for the loop to drain, bounded by ctx.
func (e *Engine) Shutdown(ctx context.Context) {
	log := logger.WithComponent("engine")

	if err := e.Stop(); err != nil && !errors.Is(err, ErrNotTraining) {
		log.Warn().Err(err).Msg("Stop during shutdown failed")
	}

	e.mu.Lock()
	done := e.loopDone
	e.mu.Unlock()
	if done == nil {
		return
	}

	select {
	case <-done:
		log.Info().Msg("Training loop drained")
	case <-ctx.Done():
		log.Warn().Msg("Timed out waiting for training loop to drain")
	}
}

func newClosedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
