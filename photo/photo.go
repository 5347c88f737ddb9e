// Package photo turns uploaded pictures into the bounded JPEG data URLs that
// posts carry.
package photo

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math"
	"strings"

	"github.com/hirosato/petsgram/domain"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxEdge bounds the longer side of a normalized image, in pixels.
	MaxEdge = 800
	// Quality is the JPEG quality of the re-encode.
	Quality = 80
	// MaxUploadBytes is the largest file accepted before decoding.
	MaxUploadBytes = 5 * 1024 * 1024
	// MaxPixels bounds width*height of a source image, checked from its
	// header before the pixels are decoded.
	MaxPixels = 50_000_000

	outputType = "image/jpeg"
)

var (
	ErrNotImage      = domain.Invalid("please select an image file")
	ErrTooLarge      = domain.Invalid("image size should be less than 5MB")
	ErrUnreadable    = domain.Invalid("error processing image, please try again")
	ErrTooManyPixels = domain.Invalid("image dimensions are too large, please try a smaller image")
)

type Normalized struct {
	Width   int
	Height  int
	DataURL string
}

// Fit scales (w, h) so the longer edge is at most limit, keeping the aspect
// ratio. Images already within bounds keep their size.
func Fit(w, h, limit int) (int, int) {
	switch {
	case w >= h && w > limit:
		return limit, scaled(h, limit, w)
	case h > w && h > limit:
		return scaled(w, limit, h), limit
	}
	return w, h
}

func scaled(side, num, den int) int {
	v := int(math.Round(float64(side) * float64(num) / float64(den)))
	if v < 1 {
		return 1
	}
	return v
}

// Normalize reads an uploaded image, downsizes it to MaxEdge and re-encodes
// it as a base64 JPEG data URL. size is the declared length of the upload,
// or -1 when unknown.
func Normalize(r io.Reader, contentType string, size int64) (*Normalized, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}
	if size > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		log.Printf("photo: read upload: %v", err)
		return nil, ErrUnreadable
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Printf("photo: read %s header: %v", contentType, err)
		return nil, ErrUnreadable
	}
	if header.Width <= 0 || header.Height <= 0 || int64(header.Width)*int64(header.Height) > MaxPixels {
		log.Printf("photo: rejecting %dx%d %s upload", header.Width, header.Height, contentType)
		return nil, ErrTooManyPixels
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("photo: decode %s upload: %v", contentType, err)
		return nil, ErrUnreadable
	}
	bounds := src.Bounds()
	width, height := Fit(bounds.Dx(), bounds.Dy(), MaxEdge)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// jpeg has no alpha, transparent areas come out white
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		log.Printf("photo: encode %s as jpeg: %v", format, err)
		return nil, ErrUnreadable
	}
	return &Normalized{
		Width:   width,
		Height:  height,
		DataURL: dataurl.New(buf.Bytes(), outputType).String(),
	}, nil
}
