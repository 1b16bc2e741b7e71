package entity

// AggregateResult is the count summary of one frame.
type AggregateResult struct {
	TotalCount int          // number of detections
	Counts     *LabelCounts // per-label counts, only labels that occurred
	Detections []Detection  // in detector emission order
}

// Aggregate turns a raw detection list into an AggregateResult.
// Detections keep their order; boxes are normalized so that x1<=x2 and y1<=y2.
// An empty list is a valid result with a zero total.
func Aggregate(detections []Detection) AggregateResult {
	res := AggregateResult{
		TotalCount: len(detections),
		Counts:     NewLabelCounts(),
		Detections: make([]Detection, 0, len(detections)),
	}
	for _, d := range detections {
		res.Counts.Inc(d.Label)
		res.Detections = append(res.Detections, Detection{
			Label:      d.Label,
			Box:        d.Box.Normalize(),
			Confidence: d.Confidence,
		})
	}
	return res
}

// Value prices the result with per-label values. Labels without a value count as zero.
func (r AggregateResult) Value(values map[string]float64) float64 {
	total := 0.0
	r.Counts.Each(func(label string, n int) {
		total += float64(n) * values[label]
	})
	return total
}
