package container

import (
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"chip-counter/config"
	"chip-counter/internal/infrastructure/vision"
)

func TestNewDetector_Backends(t *testing.T) {
	log := logs.NewTestingLog(t)

	d, err := NewDetector(log, &config.Config{Detector: config.DetectorRemote, InferenceURL: "http://127.0.0.1:1/predict"})
	require.NoError(t, err)
	require.IsType(t, &vision.RemoteDetector{}, d)

	d, err = NewDetector(log, &config.Config{Detector: config.DetectorOllama, OllamaURL: "http://localhost:11434", OllamaModel: "llava", TileSize: 640, Workers: 2})
	require.NoError(t, err)
	require.IsType(t, &vision.TiledDetector{}, d)

	_, err = NewDetector(log, &config.Config{Detector: config.DetectorYOLO, ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	require.Error(t, err)

	_, err = NewDetector(log, &config.Config{Detector: "magic"})
	require.Error(t, err)
}

func TestBuild_WithHistory(t *testing.T) {
	cfg := &config.Config{
		Detector:     config.DetectorRemote,
		InferenceURL: "http://127.0.0.1:1/predict",
		Confidence:   0.5,
		HistoryDB:    filepath.Join(t.TempDir(), "scans.db"),
	}
	c, err := Build(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	require.True(t, c.CountingService.HistoryEnabled())
	require.NotNil(t, c.UserService)
	require.NoError(t, c.Close())
}

func TestBuild_InMemoryHistory(t *testing.T) {
	cfg := &config.Config{
		Detector:     config.DetectorRemote,
		InferenceURL: "http://127.0.0.1:1/predict",
		HistoryDB:    config.HistoryInMemory,
	}
	c, err := Build(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	require.True(t, c.CountingService.HistoryEnabled())
	require.NoError(t, c.Close())

	cfg.HistoryDB = ""
	c, err = Build(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	require.False(t, c.CountingService.HistoryEnabled())
	require.NoError(t, c.Close())
}
