package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
)

type stubCheckpointable struct {
	params models.ParameterSet
	state  models.EngineState
	hist   int
}

func (s *stubCheckpointable) Checkpoint() (models.ParameterSet, models.EngineState, int) {
	return s.params.Clone(), s.state, s.hist
}

func (s *stubCheckpointable) Restore(params models.ParameterSet) error { return nil }

type recordingUploader struct {
	filenames []string
	err       error
}

func (r *recordingUploader) UploadCheckpoint(ctx context.Context, filename string, data []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.filenames = append(r.filenames, filename)
	return "checkpoints/" + filename, nil
}

func newTestCheckpointService(t *testing.T, uploader *recordingUploader) (*CheckpointService, *stubCheckpointable, string) {
	t.Helper()

	dir := t.TempDir()
	source := &stubCheckpointable{
		params: models.ParameterSet{
			"linear.weight": {0.25, -0.5},
			"linear.bias":   {0.125},
		},
		state: models.EngineState{
			CurrentRound:    7,
			CurrentStrategy: StrategyFedAvg,
			GlobalAccuracy:  0.91,
		},
		hist: 7,
	}

	svc, err := NewCheckpointService(dir, source, uploaderOrNil(uploader))
	require.NoError(t, err)
	return svc, source, dir
}

// uploaderOrNil avoids the classic non-nil interface holding a nil pointer.
func uploaderOrNil(up *recordingUploader) ports.Uploader {
	if up == nil {
		return nil
	}
	return up
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	svc, source, dir := newTestCheckpointService(t, nil)

	meta, err := svc.Save(context.Background(), "baseline")
	require.NoError(t, err)

	assert.Equal(t, "baseline", meta.Name)
	assert.Equal(t, uint(7), meta.Round)
	assert.Equal(t, StrategyFedAvg, meta.Strategy)
	assert.InDelta(t, 0.91, meta.Accuracy, 1e-9)
	assert.Equal(t, 7, meta.HistoryLength)
	assert.FileExists(t, meta.Path)
	assert.FileExists(t, filepath.Join(dir, "meta_baseline.json"))

	loaded, err := svc.Load(context.Background(), meta.Path)
	require.NoError(t, err)
	assert.Equal(t, source.params, loaded)
}

func TestCheckpointSaveRefusesOverwrite(t *testing.T) {
	svc, _, _ := newTestCheckpointService(t, nil)

	_, err := svc.Save(context.Background(), "once")
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), "once")
	assert.ErrorIs(t, err, ErrCheckpointExists)
}

func TestCheckpointSaveGeneratesUniqueNames(t *testing.T) {
	svc, _, _ := newTestCheckpointService(t, nil)

	first, err := svc.Save(context.Background(), "")
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
}

func TestCheckpointSaveSanitizesName(t *testing.T) {
	svc, _, _ := newTestCheckpointService(t, nil)

	meta, err := svc.Save(context.Background(), "pre prod/v1")
	require.NoError(t, err)
	assert.Equal(t, "pre-prod-v1", meta.Name)
}

func TestCheckpointLoadErrors(t *testing.T) {
	svc, _, dir := newTestCheckpointService(t, nil)

	t.Run("missing file", func(t *testing.T) {
		_, err := svc.Load(context.Background(), filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, ErrCheckpointNotFound)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := svc.Load(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("empty parameter set", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

		_, err := svc.Load(context.Background(), path)
		assert.ErrorIs(t, err, ErrIncompatibleParameters)
	})

	t.Run("empty tensor", func(t *testing.T) {
		path := filepath.Join(dir, "hollow.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"linear.weight":[]}`), 0o644))

		_, err := svc.Load(context.Background(), path)
		assert.ErrorIs(t, err, ErrIncompatibleParameters)
	})
}

func TestCheckpointList(t *testing.T) {
	svc, _, _ := newTestCheckpointService(t, nil)

	metas, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, metas)

	_, err = svc.Save(context.Background(), "older")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Save(context.Background(), "newer")
	require.NoError(t, err)

	metas, err = svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "newer", metas[0].Name)
	assert.Equal(t, "older", metas[1].Name)
}

func TestCheckpointMirrorsToUploader(t *testing.T) {
	uploader := &recordingUploader{}
	svc, _, _ := newTestCheckpointService(t, uploader)

	_, err := svc.Save(context.Background(), "mirrored")
	require.NoError(t, err)

	require.Len(t, uploader.filenames, 2)
	assert.Contains(t, uploader.filenames, "global_model_mirrored.json")
	assert.Contains(t, uploader.filenames, "meta_mirrored.json")
}

func TestCheckpointMirrorFailureDoesNotFailSave(t *testing.T) {
	uploader := &recordingUploader{err: errors.New("bucket unavailable")}
	svc, _, _ := newTestCheckpointService(t, uploader)

	meta, err := svc.Save(context.Background(), "local-only")
	require.NoError(t, err)
	assert.FileExists(t, meta.Path)
}
