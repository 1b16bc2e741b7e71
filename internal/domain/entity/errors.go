package entity

import "errors"

var (
	// ErrDecodeFailed means the bytes are not a decodable image. No detection is attempted.
	ErrDecodeFailed = errors.New("could not decode image")

	// ErrDetectionFailed means the detector itself failed for this request.
	ErrDetectionFailed = errors.New("detection failed")

	// ErrNoImage means the request carried no image at all.
	ErrNoImage = errors.New("no image provided")
)
