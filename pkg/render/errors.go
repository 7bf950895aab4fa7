package render

import "errors"

var (
	// ErrImageDecode is returned when an annotated frame is not a decodable JPEG.
	// The surface keeps its previous contents.
	ErrImageDecode = errors.New("render: image decode failed")

	// ErrFrameTooLarge is wrapped with ErrImageDecode when a frame header
	// declares more than MaxPixels pixels.
	ErrFrameTooLarge = errors.New("render: frame too large")

	// ErrNoImage is returned when reading a surface that has never been drawn.
	ErrNoImage = errors.New("render: surface is empty")
)
