package vision

import (
	"context"

	"github.com/bmharper/tiledinference"
	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// TiledDetector splits frames that are much larger than the model input into
// overlapping tiles, detects on each tile and merges the boxes that straddle
// tile edges. Small frames go straight to the inner detector, so wrapping is
// free for them.
type TiledDetector struct {
	Inner      port.Detector
	TileSize   int // model input size in pixels
	MinPadding int // overlap between neighbouring tiles
	Workers    int // tiles detected concurrently
}

func NewTiledDetector(inner port.Detector, tileSize, workers int) *TiledDetector {
	if workers < 1 {
		workers = 1
	}
	return &TiledDetector{
		Inner:      inner,
		TileSize:   tileSize,
		MinPadding: 32,
		Workers:    workers,
	}
}

type tileResult struct {
	dets  []entity.Detection
	boxes []tiledinference.Box
}

func (t *TiledDetector) Detect(ctx context.Context, frame *entity.Frame, threshold float32) ([]entity.Detection, error) {
	tiling := tiledinference.MakeTiling(frame.Width, frame.Height, t.TileSize, t.TileSize, t.MinPadding)
	if tiling.IsSingle() {
		return t.Inner.Detect(ctx, frame, threshold)
	}

	// class ids only need to be consistent within this call
	classIDs := map[string]int32{}
	classOf := func(label string) int32 {
		id, ok := classIDs[label]
		if !ok {
			id = int32(len(classIDs))
			classIDs[label] = id
		}
		return id
	}

	results := make([]tileResult, tiling.NumX*tiling.NumY)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.Workers)
	for ty := 0; ty < tiling.NumY; ty++ {
		for tx := 0; tx < tiling.NumX; tx++ {
			idx := ty*tiling.NumX + tx
			tr := tiling.TileRect(tx, ty)
			x1, y1 := int(tr.X1), int(tr.Y1)
			crop, err := frame.Crop(x1, y1, int(tr.X2), int(tr.Y2))
			if err != nil {
				return nil, err
			}
			g.Go(func() error {
				dets, err := t.Inner.Detect(gctx, crop, threshold)
				if err != nil {
					return err
				}
				for i := range dets {
					dets[i].Box = dets[i].Box.Offset(float32(x1), float32(y1))
				}
				results[idx].dets = dets
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// flatten in tile order so the merge sees the same input on every call
	var all []entity.Detection
	var boxes []tiledinference.Box
	for ty := 0; ty < tiling.NumY; ty++ {
		for tx := 0; tx < tiling.NumX; tx++ {
			for _, d := range results[ty*tiling.NumX+tx].dets {
				all = append(all, d)
				boxes = append(boxes, tiledinference.Box{
					Rect: tiledinference.Rect{
						X1: int32(math32.Floor(d.Box.X1)),
						Y1: int32(math32.Floor(d.Box.Y1)),
						X2: int32(math32.Ceil(d.Box.X2)),
						Y2: int32(math32.Ceil(d.Box.Y2)),
					},
					Class: classOf(d.Label),
					Tile:  tiling.MakeTileIndex(tx, ty),
				})
			}
		}
	}
	if len(all) == 0 {
		return []entity.Detection{}, nil
	}

	groups, merged := tiledinference.MergeBoxes(tiling, boxes, nil)
	out := make([]entity.Detection, 0, len(groups))
	for ig, group := range groups {
		det := all[group[0]]
		r := merged[ig].Rect
		det.Box = entity.Box{
			X1: float32(r.X1),
			Y1: float32(r.Y1),
			X2: float32(r.X2),
			Y2: float32(r.Y2),
		}.Clamp(frame.Width, frame.Height)
		for _, el := range group[1:] {
			det.Confidence = math32.Max(det.Confidence, all[el].Confidence)
		}
		out = append(out, det)
	}
	return out, nil
}

func (t *TiledDetector) Close() error {
	return t.Inner.Close()
}

var _ port.Detector = (*TiledDetector)(nil)
