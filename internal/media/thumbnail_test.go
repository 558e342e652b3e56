package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngFixture(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TestThumbnailShrinksOversizedImage(t *testing.T) {
	out, err := Thumbnail(pngFixture(1024, 768))
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width > MaxThumbnailDim || cfg.Height > MaxThumbnailDim {
		t.Fatalf("thumbnail too large: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestThumbnailLeavesSmallImageDimensionsAlone(t *testing.T) {
	out, err := Thumbnail(pngFixture(64, 48))
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Fatalf("dimensions changed for a small image: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image")); err == nil {
		t.Fatal("expected an error decoding garbage bytes")
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage(pngFixture(8, 8)) {
		t.Fatal("IsImage false for a valid PNG")
	}
	if IsImage([]byte("plain text")) {
		t.Fatal("IsImage true for non-image bytes")
	}
}
