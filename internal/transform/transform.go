package transform

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Dimensions holds a width/height pair in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// Spec describes a single custom transformation applied instead of the
// default resize+thumbnail pair. The zero value means no custom transform.
type Spec struct {
	Scale       float64 // percentage, e.g. 50 means half size
	Width       int     // target width, height derived from aspect ratio
	Height      int     // target height, width derived from aspect ratio
	Size        *Dimensions
	CropSize    *Dimensions
	CropAspect  string // "W:H", e.g. "16:9"
	CropPercent float64
	Format      string // jpeg, png, gif, bmp or tiff; empty keeps jpeg
	Grayscale   bool
}

// IsZero reports whether no transformation is configured.
func (s *Spec) IsZero() bool {
	return s.Scale == 0 && s.Width == 0 && s.Height == 0 &&
		s.Size == nil && s.CropSize == nil && s.CropAspect == "" &&
		s.CropPercent == 0 && s.Format == "" && !s.Grayscale
}

// Validate checks value ranges and rejects conflicting operations.
func (s *Spec) Validate() error {
	if s.Scale < 0 {
		return fmt.Errorf("scale must be greater than 0, got %v", s.Scale)
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("width and height must be greater than 0")
	}
	if s.CropPercent < 0 || s.CropPercent > 100 {
		return fmt.Errorf("crop percent must be in (0, 100], got %v", s.CropPercent)
	}

	resizeOps := 0
	if s.Scale > 0 {
		resizeOps++
	}
	if s.Width > 0 {
		resizeOps++
	}
	if s.Height > 0 {
		resizeOps++
	}
	if s.Size != nil {
		resizeOps++
	}
	if resizeOps > 1 {
		return fmt.Errorf("cannot use multiple resize options (scale, width, height, size) together")
	}

	cropOps := 0
	if s.CropSize != nil {
		cropOps++
	}
	if s.CropAspect != "" {
		cropOps++
	}
	if s.CropPercent > 0 {
		cropOps++
	}
	if cropOps > 1 {
		return fmt.Errorf("cannot use multiple crop options (crop-size, crop-aspect, crop-percent) together")
	}

	if s.CropAspect != "" {
		if _, _, err := ParseAspect(s.CropAspect); err != nil {
			return err
		}
	}

	if s.Format != "" {
		switch s.Format {
		case "jpeg", "jpg", "png", "gif", "bmp", "tiff":
		default:
			return fmt.Errorf("unsupported output format: %s", s.Format)
		}
	}

	return nil
}

// Apply runs the configured operations in order: crop, then resize, then
// color effects.
func (s *Spec) Apply(img image.Image) image.Image {
	if s.CropAspect != "" {
		img = cropToAspect(img, s.CropAspect)
	}
	if s.CropPercent > 0 {
		b := img.Bounds()
		w := int(float64(b.Dx()) * s.CropPercent / 100.0)
		h := int(float64(b.Dy()) * s.CropPercent / 100.0)
		img = imaging.CropCenter(img, w, h)
	}
	if s.CropSize != nil {
		img = imaging.CropCenter(img, s.CropSize.Width, s.CropSize.Height)
	}

	switch {
	case s.Scale > 0:
		b := img.Bounds()
		w := int(float64(b.Dx()) * s.Scale / 100.0)
		h := int(float64(b.Dy()) * s.Scale / 100.0)
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	case s.Width > 0:
		img = imaging.Resize(img, s.Width, 0, imaging.Lanczos)
	case s.Height > 0:
		img = imaging.Resize(img, 0, s.Height, imaging.Lanczos)
	case s.Size != nil:
		img = imaging.Resize(img, s.Size.Width, s.Size.Height, imaging.Lanczos)
	}

	if s.Grayscale {
		img = imaging.Grayscale(img)
	}

	return img
}

// Suffix returns a filename suffix describing the applied operations,
// e.g. "_scale_50", "_w800" or "_crop_800x600_bw". Empty when no
// size-changing or color operation is configured.
func (s *Spec) Suffix() string {
	var parts []string

	switch {
	case s.CropSize != nil:
		parts = append(parts, fmt.Sprintf("crop_%dx%d", s.CropSize.Width, s.CropSize.Height))
	case s.CropAspect != "":
		parts = append(parts, "aspect_"+strings.ReplaceAll(s.CropAspect, ":", "_"))
	case s.CropPercent > 0:
		parts = append(parts, fmt.Sprintf("crop_%spct", formatFloat(s.CropPercent)))
	}

	switch {
	case s.Scale > 0:
		parts = append(parts, "scale_"+formatFloat(s.Scale))
	case s.Width > 0:
		parts = append(parts, fmt.Sprintf("w%d", s.Width))
	case s.Height > 0:
		parts = append(parts, fmt.Sprintf("h%d", s.Height))
	case s.Size != nil:
		parts = append(parts, fmt.Sprintf("%dx%d", s.Size.Width, s.Size.Height))
	}

	if s.Grayscale {
		parts = append(parts, "bw")
	}

	if len(parts) == 0 {
		return ""
	}
	return "_" + strings.Join(parts, "_")
}

// Extension returns the output file extension for the configured format,
// defaulting to ".jpg".
func (s *Spec) Extension() string {
	switch s.Format {
	case "", "jpeg", "jpg":
		return ".jpg"
	default:
		return "." + s.Format
	}
}

// cropToAspect center-crops the image to the given W:H aspect ratio.
// The aspect string must already be validated.
func cropToAspect(img image.Image, aspect string) image.Image {
	aw, ah, err := ParseAspect(aspect)
	if err != nil {
		return img
	}
	target := aw / ah

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	current := float64(w) / float64(h)

	if current > target {
		// Wider than target, trim width.
		return imaging.CropCenter(img, int(float64(h)*target), h)
	}
	return imaging.CropCenter(img, w, int(float64(w)/target))
}

// ParseAspect parses an aspect ratio string such as "16:9".
func ParseAspect(s string) (width, height float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("aspect ratio must be in format width:height (e.g. 16:9), got %q", s)
	}
	width, err = strconv.ParseFloat(parts[0], 64)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect ratio width in %q", s)
	}
	height, err = strconv.ParseFloat(parts[1], 64)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect ratio height in %q", s)
	}
	return width, height, nil
}

// ParseDimensions parses a size string such as "1920x1080".
func ParseDimensions(s string) (*Dimensions, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return nil, fmt.Errorf("size must be in format WIDTHxHEIGHT (e.g. 1920x1080), got %q", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return nil, fmt.Errorf("invalid width in %q", s)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return nil, fmt.Errorf("invalid height in %q", s)
	}
	return &Dimensions{Width: w, Height: h}, nil
}

// formatFloat renders a float without a trailing ".0" for whole numbers.
func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(f, 'f', 1, 64), "0"), ".")
}
