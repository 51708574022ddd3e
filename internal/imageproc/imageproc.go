// Package imageproc prepares images before they are sent to the face
// embedding service: decoding, optional contrast normalization and resizing.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Mode selects the preprocessing applied before embedding.
type Mode string

// Preprocessing modes.
const (
	ModeNone     Mode = "none"
	ModeGray     Mode = "gray"     // grayscale with histogram equalization
	ModeEqualize Mode = "equalize" // luma histogram equalization, colors kept
)

// ParseMode validates a mode name. Empty means ModeNone.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNone:
		return ModeNone, nil
	case ModeGray, ModeEqualize:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown preprocess mode %q (want none, gray or equalize)", s)
}

const jpegQuality = 90

// Prepare decodes data, applies mode, scales the image down to fit within
// maxSize (0 disables resizing) and returns it JPEG encoded, together with
// the factor that maps pixel coordinates of the result back to the original.
// With ModeNone and an image that already fits, data is returned unchanged.
func Prepare(data []byte, mode Mode, maxSize int) ([]byte, float64, error) {
	if mode == ModeNone && maxSize <= 0 {
		return data, 1, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	needsResize := maxSize > 0 && (img.Bounds().Dx() > maxSize || img.Bounds().Dy() > maxSize)
	if mode == ModeNone && !needsResize {
		return data, 1, nil
	}

	var out image.Image = img
	switch mode {
	case ModeGray:
		out = EqualizeGray(Grayscale(img))
	case ModeEqualize:
		out = EqualizeLuma(img)
	}
	scale := 1.0
	if needsResize {
		out = Resize(out, maxSize)
		scale = float64(img.Bounds().Dx()) / float64(out.Bounds().Dx())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), scale, nil
}

// Resize scales img to fit within maxSize (width or height) keeping aspect ratio.
func Resize(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, height*maxSize/width)
	} else {
		newHeight = maxSize
		newWidth = max(1, width*maxSize/height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// equalizeLUT builds the histogram equalization lookup table for hist.
// A flat image (single intensity) maps onto itself.
func equalizeLUT(hist *[256]int, total int) [256]uint8 {
	var lut [256]uint8

	cdfMin := 0
	for _, c := range hist {
		if c > 0 {
			cdfMin = c
			break
		}
	}

	denom := total - cdfMin
	cdf := 0
	for i, c := range hist {
		cdf += c
		if denom <= 0 {
			lut[i] = uint8(i)
			continue
		}
		v := (float64(cdf-cdfMin) * 255.0 / float64(denom)) + 0.5
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}

// EqualizeGray applies histogram equalization to a grayscale image.
func EqualizeGray(src *image.Gray) *image.Gray {
	var hist [256]int
	for _, p := range src.Pix {
		hist[p]++
	}
	lut := equalizeLUT(&hist, len(src.Pix))

	dst := image.NewGray(src.Rect)
	for i, p := range src.Pix {
		dst.Pix[i] = lut[p]
	}
	return dst
}

// EqualizeLuma equalizes the Y channel of img in YCbCr space and converts it
// back to RGB, which boosts contrast without shifting colors.
func EqualizeLuma(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	ys := make([]uint8, w*h)
	cbs := make([]uint8, w*h)
	crs := make([]uint8, w*h)
	var hist [256]int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			i := y*w + x
			ys[i], cbs[i], crs[i] = yy, cb, cr
			hist[yy]++
		}
	}
	lut := equalizeLUT(&hist, len(ys))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range ys {
		r, g, b := color.YCbCrToRGB(lut[ys[i]], cbs[i], crs[i])
		off := i * 4
		dst.Pix[off] = r
		dst.Pix[off+1] = g
		dst.Pix[off+2] = b
		dst.Pix[off+3] = 255
	}
	return dst
}

// Dimensions returns the pixel size of the image at path without decoding it fully.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided image path
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
