package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// chatClient is the part of *api.Client the detector needs.
type chatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// OllamaDetector asks a vision language model to locate chips.
// It is slower and less precise than the YOLO model, but needs no trained weights.
type OllamaDetector struct {
	Model   string
	Classes []string
	// MaxSide downsizes large frames before upload; boxes come back normalized so no rescale is needed.
	MaxSide int
	client  chatClient
}

// NewOllamaDetector connects to the Ollama server at ollamaURL. Any path in the URL is ignored.
func NewOllamaDetector(ollamaURL, model string, classes []string) (*OllamaDetector, error) {
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", ollamaURL)
	}
	baseURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return newOllamaDetector(api.NewClient(baseURL, http.DefaultClient), model, classes), nil
}

func newOllamaDetector(client chatClient, model string, classes []string) *OllamaDetector {
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	return &OllamaDetector{
		Model:   model,
		Classes: classes,
		MaxSide: 1024,
		client:  client,
	}
}

func (o *OllamaDetector) prompt() string {
	return "Find every poker chip in this image. Allowed labels: " + strings.Join(o.Classes, ", ") + ".\n" +
		"Answer with JSON only, in the form " +
		`{"chips":[{"label":"Red Chip","box":[x1,y1,x2,y2],"confidence":0.9}]}` +
		" where box coordinates are fractions of the image width and height between 0 and 1." +
		` If there are no chips, answer {"chips":[]}.`
}

func (o *OllamaDetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	img := frame.Image()
	var upload bytes.Buffer
	if o.MaxSide > 0 && (frame.Width > o.MaxSide || frame.Height > o.MaxSide) {
		err := imaging.Encode(&upload, imaging.Fit(img, o.MaxSide, o.MaxSide, imaging.Lanczos), imaging.JPEG, imaging.JPEGQuality(90))
		if err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
	} else if err := imaging.Encode(&upload, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: o.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: o.prompt(),
				Images:  []api.ImageData{api.ImageData(upload.Bytes())},
			},
		},
		Stream: &streamFalse,
		Format: json.RawMessage(`"json"`),
		// fixed sampling keeps repeated requests for the same frame stable
		Options: map[string]any{
			"temperature": 0,
			"seed":        42,
		},
	}

	var content string
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("empty response from ollama")
	}
	return o.parse(content, frame.Width, frame.Height, threshold)
}

// parse turns the model answer into detections in frame pixels. Unknown labels are
// dropped, not invented, and malformed answers are errors.
func (o *OllamaDetector) parse(raw string, width, height int, threshold float32) ([]entity.Detection, error) {
	var answer struct {
		Chips []struct {
			Label      string    `json:"label"`
			Box        []float32 `json:"box"`
			Confidence *float32  `json:"confidence"`
		} `json:"chips"`
	}
	if err := json.Unmarshal([]byte(sanitizeModelJSON(raw)), &answer); err != nil {
		return nil, fmt.Errorf("parse model answer: %w", err)
	}

	known := make(map[string]string, len(o.Classes))
	for _, c := range o.Classes {
		known[strings.ToLower(c)] = c
	}

	dets := []entity.Detection{}
	for _, c := range answer.Chips {
		label, ok := known[strings.ToLower(strings.TrimSpace(c.Label))]
		if !ok || len(c.Box) != 4 {
			continue
		}
		conf := float32(1)
		if c.Confidence != nil {
			conf = *c.Confidence
		}
		if conf < threshold {
			continue
		}
		box := entity.Box{
			X1: c.Box[0] * float32(width),
			Y1: c.Box[1] * float32(height),
			X2: c.Box[2] * float32(width),
			Y2: c.Box[3] * float32(height),
		}.Normalize().Clamp(width, height)
		if box.Area() <= 0 {
			continue
		}
		dets = append(dets, entity.Detection{Label: label, Box: box, Confidence: conf})
	}
	return dets, nil
}

func (o *OllamaDetector) Close() error {
	return nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas, and keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

var _ port.Detector = (*OllamaDetector)(nil)
