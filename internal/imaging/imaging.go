package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	// Include gif image decoder
	_ "image/gif"

	"golang.org/x/image/draw"
	// Include webp image decoder
	_ "golang.org/x/image/webp"
)

// ErrCannotShrink is returned when no downscaled version fits the limit.
var ErrCannotShrink = errors.New("could not resize to a suitable image")

// Fit returns data unchanged when it is at most maxBytes long. Otherwise the
// image is re-encoded, first as jpeg with falling quality, then as smaller png
// versions, and the new file extension is returned alongside the bytes.
func Fit(data []byte, maxBytes int) ([]byte, string, error) {
	if len(data) <= maxBytes {
		return data, "", nil
	}

	m, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("can not decode image: %w", err)
	}

	if out, ok := reencode(m, maxBytes); ok {
		return out, ".jpg", nil
	}

	out, err := downscale(m, maxBytes)
	if err != nil {
		return nil, "", err
	}
	return out, ".png", nil
}

// reencode lowers jpeg quality until the image is under maxBytes.
func reencode(m image.Image, maxBytes int) ([]byte, bool) {
	for quality := 100; quality > 0; quality -= 5 {
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, m, &jpeg.Options{Quality: quality}); err != nil {
			return nil, false
		}

		if buf.Len() <= maxBytes {
			return buf.Bytes(), true
		}
	}
	return nil, false
}

// downscale resizes the image to several widths and picks the largest png
// that is still under maxBytes.
func downscale(m image.Image, maxBytes int) ([]byte, error) {
	width := m.Bounds().Dx()

	// Choose 10 widths to try
	widths := make([]int, 0, 10)
	for tenth := 10; tenth >= 1; tenth-- {
		if w := width * tenth / 10; w > 0 {
			widths = append(widths, w)
		}
	}
	images := make(chan []byte, len(widths))

	var wg sync.WaitGroup
	for _, w := range widths {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			height := m.Bounds().Dy() * w / width
			if height < 1 {
				height = 1
			}

			resized := image.NewRGBA(image.Rect(0, 0, w, height))
			draw.BiLinear.Scale(resized, resized.Bounds(), m, m.Bounds(), draw.Over, nil)

			buf := new(bytes.Buffer)
			if err := png.Encode(buf, resized); err == nil {
				images <- buf.Bytes()
			}
		}(w)
	}

	wg.Wait()
	close(images)

	var best []byte
	for img := range images {
		if len(img) <= maxBytes && len(img) > len(best) {
			best = img
		}
	}

	if best == nil {
		return nil, ErrCannotShrink
	}
	return best, nil
}
