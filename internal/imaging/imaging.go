// Package imaging normalizes item photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Defaults for item photos.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
	DefaultMaxBytes     = 10 << 20
)

var (
	// ErrUnsupported is returned for input that is not a JPEG or PNG.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrTooLarge is returned when the upload exceeds MaxBytes.
	ErrTooLarge = errors.New("image too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a processed image ready to store.
type Photo struct {
	Data          []byte
	MIME          string
	Width, Height int
}

// Processor downscales and re-encodes uploads as JPEG.
type Processor struct {
	MaxDimension int
	Quality      int
	MaxBytes     int64
}

// NewProcessor returns a Processor with the default limits.
func NewProcessor() *Processor {
	return &Processor{
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
		MaxBytes:     DefaultMaxBytes,
	}
}

// Process reads an upload, checks its format from the bytes themselves,
// downscales it to fit MaxDimension and re-encodes it as JPEG.
func (p *Processor) Process(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, p.MaxBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	img = fit(img, p.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned as is.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
