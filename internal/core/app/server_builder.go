package app

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/agisfl/agisfl-server/internal/api"
	"github.com/agisfl/agisfl-server/internal/api/handlers"
	"github.com/agisfl/agisfl-server/internal/core/config"
	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
	"github.com/agisfl/agisfl-server/internal/core/services"
	"github.com/agisfl/agisfl-server/internal/utils"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

type Server struct {
	Config              *config.Config
	HttpServer          *http.Server
	Engine              *services.Engine
	EventHub            *services.EventHub
	CheckpointService   *services.CheckpointService
	CheckpointScheduler *services.CheckpointScheduler
}

func (s *Server) Shutdown(ctx context.Context) {
	log := logger.Get()

	serverShutdownCtx, serverShutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer serverShutdownCancel()

	if s.CheckpointScheduler != nil {
		s.CheckpointScheduler.Stop()
		log.Info().Msg("Stopped checkpoint scheduler")
	}

	engineCtx, engineCancel := context.WithTimeout(ctx, 10*time.Second)
	s.Engine.Shutdown(engineCtx)
	engineCancel()
	log.Info().Msg("Stopped training engine")

	log.Info().Int("shutdown_timeout_seconds", 15).Msg("Initiating server shutdown sequence")
	shutdownStart := time.Now()

	if err := s.HttpServer.Shutdown(serverShutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		if err == context.DeadlineExceeded {
			log.Warn().Msg("Server shutdown deadline exceeded, forcing immediate shutdown")
		}
	} else {
		log.Info().Dur("duration_ms", time.Since(shutdownStart)).Msg("Server HTTP connections gracefully closed")
	}

	s.EventHub.Close()
	log.Info().Msg("Closed event hub")

	log.Info().Msg("Shutdown complete")
}

type ServerBuilder struct {
	config              *config.Config
	workers             []ports.Trainer
	initialParams       models.ParameterSet
	registry            *services.StrategyRegistry
	eventHub            *services.EventHub
	engine              *services.Engine
	s3Service           *services.S3Service
	checkpointService   *services.CheckpointService
	checkpointScheduler *services.CheckpointScheduler
	flHandler           *handlers.FederatedLearningHandler
	httpServer          *http.Server
	err                 error
}

func NewServerBuilder(cfg *config.Config) *ServerBuilder {
	return &ServerBuilder{config: cfg}
}

// InitWorkers generates the synthetic dataset, splits it into per-worker
// shards and builds the simulated fleet plus the initial global parameters.
func (sb *ServerBuilder) InitWorkers() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	seed := sb.config.FL.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	dataset := services.GenerateClassification(sb.config.FL.Samples, sb.config.FL.Features, rng)
	shards := services.SplitShards(dataset, sb.config.FL.NumWorkers, rng)

	sb.workers = make([]ports.Trainer, 0, len(shards))
	for i, shard := range shards {
		worker := services.NewSimulatedWorker(
			fmt.Sprintf("worker-%d", i),
			shard,
			sb.config.FL.Features,
			seed+int64(i)+1,
		)
		sb.workers = append(sb.workers, worker)
	}

	sb.initialParams = services.NewRandomParameters(sb.config.FL.Features, rng)

	log.Info().
		Int("workers", len(sb.workers)).
		Int("samples", sb.config.FL.Samples).
		Int("features", sb.config.FL.Features).
		Msg("Simulated worker fleet initialized")

	return sb
}

func (sb *ServerBuilder) InitEngine() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	sb.registry = services.NewStrategyRegistry()
	sb.eventHub = services.NewEventHub()

	sb.engine = services.NewEngine(
		&sb.config.FL,
		sb.workers,
		sb.initialParams,
		sb.registry,
		sb.eventHub,
		services.NewUniformSampler(sb.config.FL.Seed),
	)

	return sb
}

// InitCheckpointStore wires the local store and, when AWS credentials are
// configured, the S3 mirror. Missing credentials are not an error: the
// server runs local-only.
func (sb *ServerBuilder) InitCheckpointStore() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	var uploader ports.Uploader
	if sb.config.AWS.AccessKeyID != "" {
		s3Service, err := services.NewS3Service(sb.config)
		if err != nil {
			sb.err = fmt.Errorf("failed to initialize S3 service: %w", err)
			return sb
		}
		sb.s3Service = s3Service
		uploader = s3Service
		log.Info().Str("bucket", sb.config.AWS.BucketName).Msg("Checkpoint mirroring to S3 enabled")
	} else {
		log.Info().Msg("AWS credentials not configured, checkpoints are local-only")
	}

	checkpointService, err := services.NewCheckpointService(sb.config.FL.CheckpointDir, sb.engine, uploader)
	if err != nil {
		sb.err = fmt.Errorf("failed to initialize checkpoint service: %w", err)
		return sb
	}
	sb.checkpointService = checkpointService

	return sb
}

func (sb *ServerBuilder) InitCheckpointScheduler() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	intervalMinutes := sb.config.Scheduler.Interval
	if intervalMinutes <= 0 {
		intervalMinutes = 5
		log.Warn().
			Int("default_interval_minutes", intervalMinutes).
			Msg("Checkpoint interval not specified in config, using default")
	}

	sb.checkpointScheduler = services.NewCheckpointScheduler(
		sb.engine,
		sb.checkpointService,
		time.Duration(intervalMinutes)*time.Minute,
	)

	if err := sb.checkpointScheduler.Start(); err != nil {
		sb.err = fmt.Errorf("failed to start checkpoint scheduler: %w", err)
		return sb
	}

	return sb
}

func (sb *ServerBuilder) InitRouter() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	defaultRounds := uint(0)
	if sb.config.FL.DefaultRounds > 0 {
		defaultRounds = uint(sb.config.FL.DefaultRounds)
	}
	sb.flHandler = handlers.NewFederatedLearningHandler(sb.engine, sb.engine, sb.checkpointService, defaultRounds)
	wsHandler := handlers.NewWebSocketHandler(sb.eventHub)

	router := api.NewRouter(
		sb.flHandler,
		wsHandler,
		sb.engine,
		sb.config.Server.Endpoint,
	)

	if err := utils.VerifyPortAvailable(sb.config.Server.Host, sb.config.Server.Port); err != nil {
		sb.err = fmt.Errorf("server port is not available: %w", err)
		return sb
	}

	sb.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", sb.config.Server.Host, sb.config.Server.Port),
		Handler: router,
	}

	return sb
}

func (sb *ServerBuilder) Build() (*Server, error) {
	if sb.err != nil {
		return nil, sb.err
	}

	return &Server{
		Config:              sb.config,
		HttpServer:          sb.httpServer,
		Engine:              sb.engine,
		EventHub:            sb.eventHub,
		CheckpointService:   sb.checkpointService,
		CheckpointScheduler: sb.checkpointScheduler,
	}, nil
}
