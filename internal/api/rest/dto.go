package rest

import (
	app "chip-counter/internal/application"
	"chip-counter/internal/domain/entity"
)

// PredictResponse is the JSON body of a successful count.
type PredictResponse struct {
	ChipCount     int                 `json:"chip_count"`
	CountsByColor *entity.LabelCounts `json:"counts_by_color"`
	Detections    []entity.Detection  `json:"detections"`
	TotalValue    *float64            `json:"total_value,omitempty"`
}

func NewPredictResponse(out *app.CountOutput) PredictResponse {
	resp := PredictResponse{
		ChipCount:     out.Result.TotalCount,
		CountsByColor: out.Result.Counts,
		Detections:    out.Result.Detections,
	}
	if resp.CountsByColor == nil {
		resp.CountsByColor = entity.NewLabelCounts()
	}
	if resp.Detections == nil {
		resp.Detections = []entity.Detection{}
	}
	if out.HasValue {
		v := out.TotalValue
		resp.TotalValue = &v
	}
	return resp
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HistoryResponse struct {
	Scans []entity.ScanRecord `json:"scans"`
}
