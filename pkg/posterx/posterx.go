// Package posterx crops landscape posters to 16:9 for photo messages.
package posterx

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
)

// maxPosterBytes caps downloads; TMDb w780 backdrops are far smaller.
const maxPosterBytes = 8 << 20

// Crop16x9 center-crops img vertically to a 16:9 frame. Images that are
// already 16:9 or wider are returned unchanged.
func Crop16x9(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	newH := w * 9 / 16
	if newH <= 0 || h <= newH {
		return img
	}
	top := b.Min.Y + (h-newH)/2
	rect := image.Rect(b.Min.X, top, b.Max.X, top+newH)

	dst := image.NewRGBA(image.Rect(0, 0, w, newH))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// FetchCropped downloads a jpeg or png, crops it and re-encodes it as JPEG.
func FetchCropped(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("poster: http %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, fmt.Errorf("poster decode: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Crop16x9(img), &jpeg.Options{Quality: 88}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
