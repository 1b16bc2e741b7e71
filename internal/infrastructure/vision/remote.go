package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// RemoteDetector sends frames to an inference service over HTTP.
// The service receives a multipart upload in field "file" and answers with
// {"detections":[{"label":..., "box":[x1,y1,x2,y2], "confidence":...}]},
// which is also what this server's own /predict returns. A reply without a
// detections list is an error; a detection without a confidence counts as certain.
type RemoteDetector struct {
	URL         string
	JPEGQuality int
	client      *http.Client
}

func NewRemoteDetector(inferenceURL string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		URL:         inferenceURL,
		JPEGQuality: 95,
		client:      &http.Client{Timeout: timeout},
	}
}

func (m *RemoteDetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, frame.Image(), imaging.JPEG, imaging.JPEGQuality(m.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Detections *[]remoteDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Detections == nil {
		return nil, errors.New("inference response has no detections")
	}

	dets := make([]entity.Detection, 0, len(*result.Detections))
	for i, rd := range *result.Detections {
		if rd.Label == "" || rd.Box == nil {
			return nil, fmt.Errorf("inference response: detection %d needs a label and a box", i)
		}
		// services that only return final boxes omit the score
		conf := float32(1)
		if rd.Confidence != nil {
			conf = *rd.Confidence
		}
		if conf < threshold {
			continue
		}
		dets = append(dets, entity.Detection{
			Label:      rd.Label,
			Box:        rd.Box.Normalize().Clamp(frame.Width, frame.Height),
			Confidence: conf,
		})
	}
	return dets, nil
}

type remoteDetection struct {
	Label      string      `json:"label"`
	Box        *entity.Box `json:"box"`
	Confidence *float32    `json:"confidence"`
}

// CheckHealth asks the service root for a 200.
func (m *RemoteDetector) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(m.URL), nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (m *RemoteDetector) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// healthURL maps http://host/predict to http://host/health.
func healthURL(inferenceURL string) string {
	base := strings.TrimRight(inferenceURL, "/")
	if i := strings.LastIndex(base, "/"); i > len("https://") {
		base = base[:i]
	}
	return base + "/health"
}

var _ port.Detector = (*RemoteDetector)(nil)
