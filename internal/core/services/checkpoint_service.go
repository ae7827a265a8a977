package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

const (
	modelFilePrefix = "global_model_"
	metaFilePrefix  = "meta_"
)

var checkpointNamePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// CheckpointService persists parameter snapshots plus sibling metadata
// records under a local directory. Artifacts are append-only: a save never
// overwrites an existing checkpoint of the same name. When an uploader is
// configured, artifacts are additionally mirrored to remote storage on a
// best-effort basis.
type CheckpointService struct {
	dir      string
	source   ports.Checkpointable
	uploader ports.Uploader
}

func NewCheckpointService(dir string, source ports.Checkpointable, uploader ports.Uploader) (*CheckpointService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &CheckpointService{dir: dir, source: source, uploader: uploader}, nil
}

// Save snapshots the current global parameters. With an empty name the
// artifact is keyed by a nanosecond timestamp plus a short unique suffix, so
// repeated saves within the same second cannot collide.
func (s *CheckpointService) Save(ctx context.Context, name string) (models.CheckpointMeta, error) {
	log := logger.WithComponent("checkpoint_service")

	params, state, historyLen := s.source.Checkpoint()

	id := checkpointNamePattern.ReplaceAllString(name, "-")
	if id == "" {
		id = fmt.Sprintf("%d-%s", time.Now().UTC().UnixNano(), uuid.New().String()[:8])
	}

	modelPath := filepath.Join(s.dir, modelFilePrefix+id+".json")
	metaPath := filepath.Join(s.dir, metaFilePrefix+id+".json")
	for _, path := range []string{modelPath, metaPath} {
		if _, err := os.Stat(path); err == nil {
			return models.CheckpointMeta{}, fmt.Errorf("%w: %s", ErrCheckpointExists, path)
		}
	}

	meta := models.CheckpointMeta{
		Name:          id,
		Timestamp:     time.Now().UTC(),
		Round:         state.CurrentRound,
		Accuracy:      state.GlobalAccuracy,
		Strategy:      state.CurrentStrategy,
		HistoryLength: historyLen,
		Path:          modelPath,
	}

	modelData, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return models.CheckpointMeta{}, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return models.CheckpointMeta{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(modelPath, modelData, 0o644); err != nil {
		return models.CheckpointMeta{}, fmt.Errorf("failed to write parameter snapshot: %w", err)
	}
	if err := os.WriteFile(metaPath, metaData, 0o644); err != nil {
		return models.CheckpointMeta{}, fmt.Errorf("failed to write metadata: %w", err)
	}

	log.Info().
		Str("path", modelPath).
		Uint("round", meta.Round).
		Str("strategy", meta.Strategy).
		Msg("Checkpoint saved")

	if s.uploader != nil {
		s.mirror(ctx, modelPath, modelData, metaPath, metaData)
	}

	return meta, nil
}

// mirror uploads both artifacts; a mirror failure never fails the save.
func (s *CheckpointService) mirror(ctx context.Context, modelPath string, modelData []byte, metaPath string, metaData []byte) {
	log := logger.WithComponent("checkpoint_service")

	for _, artifact := range []struct {
		path string
		data []byte
	}{
		{modelPath, modelData},
		{metaPath, metaData},
	} {
		key, err := s.uploader.UploadCheckpoint(ctx, filepath.Base(artifact.path), artifact.data)
		if err != nil {
			log.Warn().Err(err).Str("path", artifact.path).Msg("Failed to mirror checkpoint artifact")
			continue
		}
		log.Debug().Str("key", key).Msg("Mirrored checkpoint artifact")
	}
}

// Load reads a parameter snapshot and validates it structurally before
// returning; a malformed artifact yields an error, never a partially
// populated set.
func (s *CheckpointService) Load(ctx context.Context, path string) (models.ParameterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var params models.ParameterSet
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: empty parameter set in %s", ErrIncompatibleParameters, path)
	}
	for key, tensor := range params {
		if len(tensor) == 0 {
			return nil, fmt.Errorf("%w: empty tensor %q in %s", ErrIncompatibleParameters, key, path)
		}
	}

	log := logger.WithComponent("checkpoint_service")
	log.Info().Str("path", path).Msg("Checkpoint loaded")
	return params, nil
}

// List returns metadata for every stored checkpoint, newest first.
func (s *CheckpointService) List(ctx context.Context) ([]models.CheckpointMeta, error) {
	log := logger.WithComponent("checkpoint_service")

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	metas := make([]models.CheckpointMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), metaFilePrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read checkpoint metadata")
			continue
		}
		var meta models.CheckpointMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to decode checkpoint metadata")
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Timestamp.After(metas[j].Timestamp) })
	return metas, nil
}
