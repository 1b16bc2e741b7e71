package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DETECTOR", "MODEL_PATH", "MODEL_CLASSES", "INFERENCE_URL", "OLLAMA_URL", "OLLAMA_MODEL",
		"MODEL_INPUT_SIZE", "TILE_SIZE", "INFERENCE_WORKERS", "CONFIDENCE_THRESHOLD", "NMS_THRESHOLD",
		"DETECT_TIMEOUT", "MAX_UPLOAD_MB", "RATE_LIMIT_PER_MINUTE", "ALLOWED_ORIGINS", "HISTORY_DB",
		"CHIP_VALUES", "TELEGRAM_TOKEN",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Port)
	require.Equal(t, ":8000", cfg.Addr())
	require.Equal(t, DetectorYOLO, cfg.Detector)
	require.Equal(t, "models/chips.onnx", cfg.ModelPath)
	require.Equal(t, float32(0.5), cfg.Confidence)
	require.Equal(t, float32(0.45), cfg.NMSThreshold)
	require.Equal(t, 640, cfg.InputSize)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.DetectTimeout)
	require.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Empty(t, cfg.ChipValues)
	require.Empty(t, cfg.TelegramToken)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DETECTOR", "Remote")
	t.Setenv("INFERENCE_URL", "http://gpu:8000/predict")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.3")
	t.Setenv("DETECT_TIMEOUT", "45")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://chips.example")
	t.Setenv("CHIP_VALUES", "Red Chip=5, Blue Chip=10")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, DetectorRemote, cfg.Detector)
	require.Equal(t, float32(0.3), cfg.Confidence)
	require.Equal(t, 45*time.Second, cfg.DetectTimeout)
	require.Equal(t, []string{"http://localhost:3000", "https://chips.example"}, cfg.AllowedOrigins)
	require.Equal(t, map[string]float64{"Red Chip": 5, "Blue Chip": 10}, cfg.ChipValues)

	t.Setenv("DETECT_TIMEOUT", "1m30s")
	cfg, err = FromEnv()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.DetectTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"threshold":  {"CONFIDENCE_THRESHOLD", "1.5"},
		"not number": {"CONFIDENCE_THRESHOLD", "high"},
		"nan":        {"CONFIDENCE_THRESHOLD", "NaN"},
		"inf":        {"NMS_THRESHOLD", "+Inf"},
		"detector":   {"DETECTOR", "magic"},
		"workers":    {"INFERENCE_WORKERS", "0"},
		"port":       {"PORT", "http"},
		"values":     {"CHIP_VALUES", "Red Chip"},
		"timeout":    {"DETECT_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			require.Error(t, err)
		})
	}

	clearEnv(t)
	t.Setenv("DETECTOR", "remote")
	_, err := FromEnv()
	require.ErrorContains(t, err, "INFERENCE_URL")
}

func TestParseChipValues(t *testing.T) {
	v, err := ParseChipValues("")
	require.NoError(t, err)
	require.Empty(t, v)

	v, err = ParseChipValues("White Chip=1,Black Chip=100,")
	require.NoError(t, err)
	require.Equal(t, 100.0, v["Black Chip"])

	_, err = ParseChipValues("Red Chip=-1")
	require.Error(t, err)

	_, err = ParseChipValues("Red Chip=NaN")
	require.Error(t, err)
}

func TestValidate_NonFinite(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.Confidence = float32(math.NaN())
	require.ErrorContains(t, cfg.Validate(), "CONFIDENCE_THRESHOLD")

	cfg.Confidence = 0.5
	cfg.NMSThreshold = float32(math.NaN())
	require.ErrorContains(t, cfg.Validate(), "NMS_THRESHOLD")
}
