package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"chip-counter/config"
	"chip-counter/internal/api/rest"
	app "chip-counter/internal/application"
	"chip-counter/internal/container"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("chipcount", "Count poker chips in an image")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image file", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Write the annotated image (JPEG) to this file", Default: ""})
	detector := parser.String("d", "detector", &argparse.Options{Help: "Detector backend: yolo, remote or ollama (overrides DETECTOR)", Default: ""})
	model := parser.String("m", "model", &argparse.Options{Help: "Path to ONNX model (overrides MODEL_PATH)", Default: ""})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Confidence threshold (overrides CONFIDENCE_THRESHOLD)", Default: -1.0})
	tileSize := parser.Int("", "tile", &argparse.Options{Help: "Tile size for large images, 0 disables tiling (overrides TILE_SIZE)", Default: -1})
	asJSON := parser.Flag("j", "json", &argparse.Options{Help: "Print the result as JSON, in the same shape as POST /predict", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if *detector != "" {
		os.Setenv("DETECTOR", *detector)
	}
	if *model != "" {
		os.Setenv("MODEL_PATH", *model)
	}
	cfg, err := config.Load()
	check(err)
	if *threshold >= 0 {
		cfg.Confidence = float32(*threshold)
	}
	if *tileSize >= 0 {
		cfg.TileSize = *tileSize
	}
	// the CLI never records history
	cfg.HistoryDB = ""
	check(cfg.Validate())

	log, err := logs.NewLog()
	check(err)

	img, err := os.ReadFile(*input)
	check(err)

	c, err := container.Build(log, cfg)
	check(err)
	defer c.Close()

	out, err := c.CountingService.Count(context.Background(), app.CountRequest{
		Image:    img,
		Source:   "cli",
		Annotate: *output != "",
	})
	if err != nil {
		c.Close()
		check(err)
	}

	if *output != "" {
		check(os.WriteFile(*output, out.Annotated, 0644))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		check(enc.Encode(rest.NewPredictResponse(out)))
		return
	}

	fmt.Printf("%d chips in %dx%d image (%v)\n", out.Result.TotalCount, out.Width, out.Height, out.Elapsed.Round(time.Millisecond))
	out.Result.Counts.Each(func(label string, n int) {
		fmt.Printf("  %-12v %d\n", label, n)
	})
	if out.HasValue {
		fmt.Printf("  total value  %.2f\n", out.TotalValue)
	}
}
