package app

// Stage is a step in handling one counting request.
//
//	Received -> Decoding -> Decoded -> Detecting -> Aggregating -> Responded
//	                     \-> DecodeFailed -> ErrorResponded
//	            Detecting -> ErrorResponded
type Stage int

const (
	StageReceived Stage = iota
	StageDecoding
	StageDecoded
	StageDecodeFailed
	StageDetecting
	StageAggregating
	StageResponded
	StageErrorResponded
)

var stageNames = [...]string{
	StageReceived:       "received",
	StageDecoding:       "decoding",
	StageDecoded:        "decoded",
	StageDecodeFailed:   "decode_failed",
	StageDetecting:      "detecting",
	StageAggregating:    "aggregating",
	StageResponded:      "responded",
	StageErrorResponded: "error_responded",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	return s == StageResponded || s == StageErrorResponded
}
