package vision

// YOLOOptions configures a YOLODetector.
type YOLOOptions struct {
	ModelPath    string
	Classes      []string
	InputSize    int     // square model input, 640 for the stock export
	NMSThreshold float32 // IoU above which the weaker of two boxes is dropped
	Workers      int     // independently loaded nets
}

func (o YOLOOptions) withDefaults() YOLOOptions {
	if len(o.Classes) == 0 {
		o.Classes = append([]string(nil), DefaultClasses...)
	}
	if o.InputSize <= 0 {
		o.InputSize = 640
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = 0.45
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}
