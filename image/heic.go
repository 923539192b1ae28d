package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/jdeng/goheif"
)

func decodeHEIC(r io.Reader) (image.Image, error) {
	return goheif.Decode(r)
}

func extractHEICExif(ra io.ReaderAt) ([]byte, error) {
	return goheif.ExtractExif(ra)
}

// convertHEIC decodes a HEIC/HEIF image, applies its EXIF orientation and
// re-encodes it as JPEG at a fixed quality.
func (a *Acquirer) convertHEIC(data []byte) ([]byte, error) {
	img, err := a.decodeHEIC(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode heic: %w", err)
	}

	if a.heicExif != nil {
		if raw, err := a.heicExif(bytes.NewReader(data)); err == nil && len(raw) > 0 {
			if orientation := GetImageOrientation(raw); orientation != 1 {
				img = CorrectImageOrientation(img, orientation)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: heicJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
