package posterx

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y), A: 255})
		}
	}
	return img
}

func TestCrop16x9(t *testing.T) {
	out := Crop16x9(solid(160, 200))
	assert.Equal(t, 160, out.Bounds().Dx())
	assert.Equal(t, 90, out.Bounds().Dy())
	// centered: the first row comes from y=55
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(55), r>>8)

	wide := solid(320, 100)
	assert.Same(t, wide, Crop16x9(wide))
}

func TestFetchCropped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(64, 64)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	b, err := FetchCropped(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 36, img.Bounds().Dy())
}

func TestFetchCroppedBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()
	_, err := FetchCropped(context.Background(), nil, srv.URL)
	assert.Error(t, err)
}
