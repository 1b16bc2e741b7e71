package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// CountingOptions tune a CountingService.
type CountingOptions struct {
	Threshold float32            // minimum detection confidence
	Timeout   time.Duration      // upper bound on one detection, zero means none
	Values    map[string]float64 // chip values by label, empty disables valuation
}

// CountRequest is one image to count.
type CountRequest struct {
	Image    []byte
	Source   string // transport name, stored with the scan history
	Annotate bool   // also render an annotated JPEG
}

// CountOutput is a successful count.
type CountOutput struct {
	Result     entity.AggregateResult
	TotalValue float64
	HasValue   bool // TotalValue is meaningful
	Width      int
	Height     int
	Annotated  []byte
	Elapsed    time.Duration
}

// CountingStats are totals since the service started.
type CountingStats struct {
	Requests          int64
	Succeeded         int64
	DecodeFailures    int64
	DetectionFailures int64
	Chips             int64
}

// CountingService turns image bytes into chip counts. It is shared by every transport.
type CountingService struct {
	log       logs.Log
	decoder   port.ImageDecoder
	detector  port.Detector
	annotator port.Annotator
	history   port.ScanRepository
	opts      CountingOptions

	// OnStage, when set, observes every stage transition. Used in tests.
	OnStage func(Stage)

	requests          atomic.Int64
	succeeded         atomic.Int64
	decodeFailures    atomic.Int64
	detectionFailures atomic.Int64
	chips             atomic.Int64
}

// NewCountingService wires the pipeline. annotator and history may be nil.
func NewCountingService(log logs.Log, decoder port.ImageDecoder, detector port.Detector, annotator port.Annotator, history port.ScanRepository, opts CountingOptions) *CountingService {
	return &CountingService{
		log:       log,
		decoder:   decoder,
		detector:  detector,
		annotator: annotator,
		history:   history,
		opts:      opts,
	}
}

func (s *CountingService) enter(st Stage) {
	if s.OnStage != nil {
		s.OnStage(st)
	}
}

// Count decodes, detects and aggregates one image.
// A decode failure wraps entity.ErrDecodeFailed and never reaches the detector.
// A detector failure wraps entity.ErrDetectionFailed, together with
// context.DeadlineExceeded when the detection timed out.
func (s *CountingService) Count(ctx context.Context, req CountRequest) (*CountOutput, error) {
	start := time.Now()
	s.requests.Add(1)
	s.enter(StageReceived)

	s.enter(StageDecoding)
	frame, err := s.decoder.Decode(req.Image)
	if err != nil {
		s.decodeFailures.Add(1)
		s.enter(StageDecodeFailed)
		s.enter(StageErrorResponded)
		if !errors.Is(err, entity.ErrDecodeFailed) {
			err = fmt.Errorf("%w: %v", entity.ErrDecodeFailed, err)
		}
		return nil, err
	}
	s.enter(StageDecoded)

	s.enter(StageDetecting)
	detectCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	dets, err := s.detector.Detect(detectCtx, frame, s.opts.Threshold)
	if err == nil && detectCtx.Err() != nil {
		err = detectCtx.Err()
	}
	if err != nil {
		s.detectionFailures.Add(1)
		s.enter(StageErrorResponded)
		if errors.Is(err, context.Canceled) {
			s.log.Infof("Detection on %dx%d frame cancelled", frame.Width, frame.Height)
		} else {
			s.log.Errorf("Detection on %dx%d frame failed: %v", frame.Width, frame.Height, err)
		}
		return nil, fmt.Errorf("%w: %w", entity.ErrDetectionFailed, err)
	}

	s.enter(StageAggregating)
	out := &CountOutput{
		Result: entity.Aggregate(dets),
		Width:  frame.Width,
		Height: frame.Height,
	}
	if len(s.opts.Values) > 0 {
		out.TotalValue = out.Result.Value(s.opts.Values)
		out.HasValue = true
	}

	if req.Annotate && s.annotator != nil {
		out.Annotated, err = s.annotator.Annotate(frame, out.Result)
		if err != nil {
			s.enter(StageErrorResponded)
			return nil, fmt.Errorf("annotate: %w", err)
		}
	}

	s.record(ctx, req.Source, out)
	s.succeeded.Add(1)
	s.chips.Add(int64(out.Result.TotalCount))
	out.Elapsed = time.Since(start)
	s.log.Debugf("Counted %d chips in %dx%d frame from %v (%v)", out.Result.TotalCount, frame.Width, frame.Height, req.Source, out.Elapsed)
	s.enter(StageResponded)
	return out, nil
}

// record saves a scan summary. History is best-effort and never fails a count.
func (s *CountingService) record(ctx context.Context, source string, out *CountOutput) {
	if s.history == nil {
		return
	}
	rec := &entity.ScanRecord{
		Source:     source,
		TotalCount: out.Result.TotalCount,
		Counts:     out.Result.Counts,
		TotalValue: out.TotalValue,
		Width:      out.Width,
		Height:     out.Height,
	}
	if err := s.history.Save(ctx, rec); err != nil {
		s.log.Warnf("Failed to save scan history: %v", err)
	}
}

// History returns the most recent scans, newest first.
func (s *CountingService) History(ctx context.Context, limit int) ([]entity.ScanRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Recent(ctx, limit)
}

// HistoryEnabled reports whether scans are being recorded.
func (s *CountingService) HistoryEnabled() bool {
	return s.history != nil
}

func (s *CountingService) Stats() CountingStats {
	return CountingStats{
		Requests:          s.requests.Load(),
		Succeeded:         s.succeeded.Load(),
		DecodeFailures:    s.decodeFailures.Load(),
		DetectionFailures: s.detectionFailures.Load(),
		Chips:             s.chips.Load(),
	}
}

// ErrHistoryDisabled is returned by History when no scan repository is configured.
var ErrHistoryDisabled = errors.New("scan history is disabled")
