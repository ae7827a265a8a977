package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/agisfl/agisfl-server/internal/core/ports"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

// CheckpointScheduler periodically snapshots the global model while a
// training run is in progress. Auto checkpoints get generated names so they
// never collide with operator-initiated saves.
type CheckpointScheduler struct {
	engine      ports.Engine
	checkpoints *CheckpointService
	scheduler   *gocron.Scheduler
	mutex       sync.Mutex
	interval    time.Duration
	isRunning   bool
	stopCh      chan struct{}
}

func NewCheckpointScheduler(engine ports.Engine, checkpoints *CheckpointService, interval time.Duration) *CheckpointScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CheckpointScheduler{
		engine:      engine,
		checkpoints: checkpoints,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

func (s *CheckpointScheduler) SetInterval(interval time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.interval = interval
}

func (s *CheckpointScheduler) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return nil
	}

	log := logger.WithComponent("checkpoint_scheduler")
	log.Info().
		Dur("interval", s.interval).
		Msg("Starting checkpoint scheduler")

	s.scheduler = gocron.NewScheduler(time.UTC)

	s.stopCh = make(chan struct{})

	job, err := s.scheduler.Every(s.interval).Do(func() {
		select {
		case <-s.stopCh:
			return
		default:
			status := s.engine.Status()
			if !status.IsTraining {
				return
			}

			startTime := time.Now()
			meta, err := s.checkpoints.Save(context.Background(), "")
			if err != nil {
				log.Error().Err(err).Msg("Scheduled checkpoint failed")
				return
			}
			log.Debug().
				Str("name", meta.Name).
				Uint("round", meta.Round).
				Dur("duration", time.Since(startTime)).
				Msg("Completed scheduled checkpoint")
		}
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule checkpoint job")
		return err
	}

	s.scheduler.StartAsync()
	s.isRunning = true

	log.Info().
		Str("next_run", job.NextRun().String()).
		Msg("Checkpoint scheduler started")

	return nil
}

func (s *CheckpointScheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isRunning {
		return
	}

	close(s.stopCh)

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	s.isRunning = false

	log := logger.WithComponent("checkpoint_scheduler")
	log.Info().Msg("Checkpoint scheduler stopped")
}

func (s *CheckpointScheduler) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.isRunning
}
