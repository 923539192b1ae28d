package image

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// GetImageOrientation extracts the EXIF orientation from JPEG or raw EXIF data.
// It returns 1 (upright) when no orientation can be read.
func GetImageOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	orientation, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientVal, err := orientation.Int(0)
	if err != nil || orientVal < 1 || orientVal > 8 {
		return 1
	}

	return orientVal
}

// CorrectImageOrientation applies the EXIF orientation so the image is upright.
func CorrectImageOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2: // Flip horizontal
		return imaging.FlipH(img)
	case 3: // Rotate 180
		return imaging.Rotate180(img)
	case 4: // Flip vertical
		return imaging.FlipV(img)
	case 5: // Transpose
		return imaging.Transpose(img)
	case 6: // Rotate 90 clockwise
		return imaging.Rotate270(img)
	case 7: // Transverse
		return imaging.Transverse(img)
	case 8: // Rotate 90 counter-clockwise
		return imaging.Rotate90(img)
	default: // Orientation 1 or unknown
		return img
	}
}
