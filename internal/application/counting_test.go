package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/infrastructure/render"
	"chip-counter/internal/infrastructure/storage"
	"chip-counter/internal/infrastructure/vision"
)

type stubDetector struct {
	dets  []entity.Detection
	err   error
	block bool
	calls atomic.Int32
	seen  float32
}

func (d *stubDetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	d.calls.Add(1)
	d.seen = threshold
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}
	return append([]entity.Detection(nil), d.dets...), nil
}

func (d *stubDetector) Close() error { return nil }

func pngBytes(t *testing.T, w, h int) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func fiveChips() []entity.Detection {
	return []entity.Detection{
		{Label: "Red Chip", Box: entity.Box{X1: 10, Y1: 10, X2: 30, Y2: 30}, Confidence: 0.91},
		{Label: "Blue Chip", Box: entity.Box{X1: 40, Y1: 10, X2: 60, Y2: 30}, Confidence: 0.88},
		{Label: "Red Chip", Box: entity.Box{X1: 70, Y1: 10, X2: 90, Y2: 30}, Confidence: 0.77},
		{Label: "Red Chip", Box: entity.Box{X1: 10, Y1: 40, X2: 30, Y2: 60}, Confidence: 0.66},
		{Label: "Blue Chip", Box: entity.Box{X1: 40, Y1: 40, X2: 60, Y2: 60}, Confidence: 0.55},
	}
}

func newTestService(t *testing.T, det *stubDetector, opts CountingOptions) (*CountingService, *[]Stage) {
	svc := NewCountingService(logs.NewTestingLog(t), vision.NewDecoder(), det, render.NewAnnotator(), storage.NewMemoryScanRepository(10), opts)
	stages := &[]Stage{}
	svc.OnStage = func(s Stage) { *stages = append(*stages, s) }
	return svc, stages
}

func TestCount_RedAndBlue(t *testing.T) {
	det := &stubDetector{dets: fiveChips()}
	svc, stages := newTestService(t, det, CountingOptions{Threshold: 0.5})

	out, err := svc.Count(context.Background(), CountRequest{Image: pngBytes(t, 100, 80), Source: "test"})
	require.NoError(t, err)
	require.Equal(t, float32(0.5), det.seen)
	require.Equal(t, 5, out.Result.TotalCount)
	require.Equal(t, 3, out.Result.Counts.Get("Red Chip"))
	require.Equal(t, 2, out.Result.Counts.Get("Blue Chip"))
	require.Equal(t, []string{"Red Chip", "Blue Chip"}, out.Result.Counts.Labels())
	require.Len(t, out.Result.Detections, 5)
	require.Equal(t, 100, out.Width)
	require.Equal(t, 80, out.Height)
	require.False(t, out.HasValue)
	require.Nil(t, out.Annotated)

	require.Equal(t, []Stage{StageReceived, StageDecoding, StageDecoded, StageDetecting, StageAggregating, StageResponded}, *stages)

	recs, err := svc.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "test", recs[0].Source)
	require.Equal(t, 5, recs[0].TotalCount)
}

func TestCount_DecodeFailureSkipsDetector(t *testing.T) {
	det := &stubDetector{dets: fiveChips()}
	svc, stages := newTestService(t, det, CountingOptions{Threshold: 0.5})

	for _, data := range [][]byte{nil, []byte("not an image")} {
		out, err := svc.Count(context.Background(), CountRequest{Image: data})
		require.Nil(t, out)
		require.ErrorIs(t, err, entity.ErrDecodeFailed)
	}
	require.Zero(t, det.calls.Load())
	require.Equal(t, []Stage{StageReceived, StageDecoding, StageDecodeFailed, StageErrorResponded}, (*stages)[:4])
	require.Equal(t, int64(2), svc.Stats().DecodeFailures)
}

func TestCount_ZeroDetections(t *testing.T) {
	svc, _ := newTestService(t, &stubDetector{}, CountingOptions{Threshold: 0.5})

	out, err := svc.Count(context.Background(), CountRequest{Image: pngBytes(t, 10, 10)})
	require.NoError(t, err)
	require.Zero(t, out.Result.TotalCount)
	require.Zero(t, out.Result.Counts.Len())
	require.NotNil(t, out.Result.Detections)
	require.Empty(t, out.Result.Detections)
}

func TestCount_DetectionFailure(t *testing.T) {
	svc, stages := newTestService(t, &stubDetector{err: errors.New("cuda out of memory")}, CountingOptions{Threshold: 0.5})

	_, err := svc.Count(context.Background(), CountRequest{Image: pngBytes(t, 10, 10)})
	require.ErrorIs(t, err, entity.ErrDetectionFailed)
	require.NotErrorIs(t, err, entity.ErrDecodeFailed)
	require.Equal(t, StageErrorResponded, (*stages)[len(*stages)-1])
	require.Equal(t, int64(1), svc.Stats().DetectionFailures)
}

func TestCount_Timeout(t *testing.T) {
	svc, _ := newTestService(t, &stubDetector{block: true}, CountingOptions{Threshold: 0.5, Timeout: 20 * time.Millisecond})

	_, err := svc.Count(context.Background(), CountRequest{Image: pngBytes(t, 10, 10)})
	require.ErrorIs(t, err, entity.ErrDetectionFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCount_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, &stubDetector{dets: fiveChips()}, CountingOptions{Threshold: 0.5})
	img := pngBytes(t, 100, 80)

	encode := func() []byte {
		out, err := svc.Count(context.Background(), CountRequest{Image: img})
		require.NoError(t, err)
		raw, err := json.Marshal(map[string]any{
			"chip_count":      out.Result.TotalCount,
			"counts_by_color": out.Result.Counts,
			"detections":      out.Result.Detections,
		})
		require.NoError(t, err)
		return raw
	}
	require.Equal(t, encode(), encode())
}

func TestCount_ValuesAndAnnotation(t *testing.T) {
	svc, _ := newTestService(t, &stubDetector{dets: fiveChips()}, CountingOptions{
		Threshold: 0.5,
		Values:    map[string]float64{"Red Chip": 5, "Blue Chip": 10},
	})

	out, err := svc.Count(context.Background(), CountRequest{Image: pngBytes(t, 100, 80), Annotate: true})
	require.NoError(t, err)
	require.True(t, out.HasValue)
	require.InDelta(t, 35.0, out.TotalValue, 1e-9)
	require.NotEmpty(t, out.Annotated)

	st := svc.Stats()
	require.Equal(t, int64(1), st.Requests)
	require.Equal(t, int64(1), st.Succeeded)
	require.Equal(t, int64(5), st.Chips)
}

func TestHistoryDisabled(t *testing.T) {
	svc := NewCountingService(logs.NewTestingLog(t), vision.NewDecoder(), &stubDetector{}, nil, nil, CountingOptions{})
	require.False(t, svc.HistoryEnabled())
	_, err := svc.History(context.Background(), 5)
	require.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestStage_String(t *testing.T) {
	require.Equal(t, "decode_failed", StageDecodeFailed.String())
	require.True(t, StageResponded.Terminal())
	require.False(t, StageDetecting.Terminal())
	require.Equal(t, "unknown", Stage(42).String())
}
