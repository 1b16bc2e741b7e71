package vision

import (
	"bufio"
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strings"
)

// DefaultClasses is the class order the chip model was trained with.
var DefaultClasses = []string{
	"Black Chip",
	"Blue Chip",
	"Green Chip",
	"Red Chip",
	"White Chip",
}

// LabelColors are the drawing colours of the known chip classes.
var LabelColors = map[string]color.RGBA{
	"Black Chip": {R: 40, G: 40, B: 40, A: 255},
	"Blue Chip":  {R: 30, G: 90, B: 255, A: 255},
	"Green Chip": {R: 0, G: 200, B: 0, A: 255},
	"Red Chip":   {R: 230, G: 20, B: 20, A: 255},
	"White Chip": {R: 255, G: 255, B: 255, A: 255},
}

// FallbackColor is used for labels without an entry in LabelColors.
var FallbackColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}

// ColorOf returns the drawing colour for label.
func ColorOf(label string) color.RGBA {
	if c, ok := LabelColors[label]; ok {
		return c
	}
	return FallbackColor
}

// LoadClasses reads class names, one per line. Blank lines and lines starting
// with '#' are skipped. An empty path returns DefaultClasses.
func LoadClasses(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultClasses...), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classes: %w", err)
	}
	var classes []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		classes = append(classes, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read classes: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("classes file %s is empty", path)
	}
	return classes, nil
}
