// Package imagenorm turns uploaded images into bounded JPEG data URLs small enough to be
// embedded in the content document.
package imagenorm

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the input is not a decodable image.
var ErrDecode = errors.New("No se pudo cargar la imagen")

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// maxSourcePixels bounds the decoded size of an input, about 160 MB as RGBA.
var maxSourcePixels = 40_000_000

type Result struct {
	DataURL       string
	JPEG          []byte
	Width         int
	Height        int
	Quality       int
	OriginalBytes int
	// EncodedBytes is the length of DataURL, the size that counts against the ceiling.
	EncodedBytes int
	// Oversized is set when the floor quality was reached above the ceiling.
	Oversized bool
}

// Normalize decodes data (raw bytes or a base64 data URL), resizes it into the
// profile's box and re-encodes it as JPEG, lowering quality step by step while the data
// URL is above the ceiling.
func Normalize(data []byte, p Profile) (Result, error) {
	raw, err := unwrapDataURL(data)
	if err != nil {
		return Result{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return Result{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxSourcePixels)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	dst := resize(src, p)

	quality := p.StartQuality
	encoded, err := encodeJPEG(dst, quality)
	if err != nil {
		return Result{}, err
	}
	for dataURLLen(encoded) > p.Ceiling && quality > p.FloorQuality {
		quality -= p.Step
		if quality < p.FloorQuality {
			quality = p.FloorQuality
		}
		if encoded, err = encodeJPEG(dst, quality); err != nil {
			return Result{}, err
		}
	}

	dataURL := jpegDataURLPrefix + base64.StdEncoding.EncodeToString(encoded)
	bounds := dst.Bounds()
	return Result{
		DataURL:       dataURL,
		JPEG:          encoded,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Quality:       quality,
		OriginalBytes: len(data),
		EncodedBytes:  len(dataURL),
		Oversized:     len(dataURL) > p.Ceiling,
	}, nil
}

func unwrapDataURL(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("data:")) {
		return data, nil
	}
	header, payload, ok := strings.Cut(string(data), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: unsupported data URL", ErrDecode)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return decoded, nil
}

func resize(src image.Image, p Profile) *image.RGBA {
	bounds := src.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	maxW, maxH := float64(p.MaxWidth), float64(p.MaxHeight)

	if p.Fit == FitCover {
		return cover(src, maxW, maxH)
	}

	drawW, drawH := w, h
	switch p.Fit {
	case FitWidth:
		if w > maxW {
			drawH = h * maxW / w
			drawW = maxW
		}
	case FitWithin:
		if w > h {
			if w > maxW {
				drawH = h * maxW / w
				drawW = maxW
			}
		} else if h > maxH {
			drawW = w * maxH / h
			drawH = maxH
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, atLeastOne(drawW), atLeastOne(drawH)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// cover fills a maxW x maxH canvas from the centered part of src with the canvas's
// aspect ratio. Only that part is scaled.
func cover(src image.Image, maxW, maxH float64) *image.RGBA {
	bounds := src.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	cropW, cropH := w, h
	if w/h > maxW/maxH {
		cropW = h * maxW / maxH
	} else {
		cropH = w * maxH / maxW
	}
	cropWi, cropHi := min(atLeastOne(cropW), bounds.Dx()), min(atLeastOne(cropH), bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-cropWi)/2
	y0 := bounds.Min.Y + (bounds.Dy()-cropHi)/2
	visible := image.Rect(x0, y0, x0+cropWi, y0+cropHi)

	dst := image.NewRGBA(image.Rect(0, 0, atLeastOne(maxW), atLeastOne(maxH)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, visible, draw.Over, nil)
	return dst
}

func atLeastOne(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func dataURLLen(encoded []byte) int {
	return len(jpegDataURLPrefix) + base64.StdEncoding.EncodedLen(len(encoded))
}
