// Package media handles the attachment bytes a channel adapter
// receives alongside a message: thumbnailing images down to a size
// cheap to echo back over a chat transport, before the original is
// written under the data directory's media tree (spec §6).
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxThumbnailDim is the longest edge, in pixels, a generated
// thumbnail is allowed to have.
const MaxThumbnailDim = 512

// Thumbnail decodes an image (jpeg, png, gif, bmp, or webp) and
// returns a JPEG-encoded thumbnail no larger than MaxThumbnailDim on
// its longest edge, preserving aspect ratio. Images already smaller
// than that are re-encoded unchanged rather than upscaled.
func Thumbnail(content []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	var resized image.Image = img
	if w > MaxThumbnailDim || h > MaxThumbnailDim {
		if w >= h {
			resized = imaging.Resize(img, MaxThumbnailDim, 0, imaging.Lanczos)
		} else {
			resized = imaging.Resize(img, 0, MaxThumbnailDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// IsImage reports whether content's signature matches a format
// Thumbnail can decode, without fully decoding it.
func IsImage(content []byte) bool {
	_, _, err := image.DecodeConfig(bytes.NewReader(content))
	return err == nil
}
