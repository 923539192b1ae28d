package image

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/apex/log"
	"github.com/disintegration/imaging"
)

const (
	previewSize    = 512
	previewQuality = 75
)

// preview builds a thumbnail data URL. It never fails the acquisition.
func (a *Acquirer) preview(data []byte) string {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		log.Debugf("No preview: %v", err)
		return ""
	}
	return a.previewFromImage(img)
}

func (a *Acquirer) previewFromImage(img image.Image) string {
	size := a.PreviewSize
	if size <= 0 {
		size = previewSize
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		log.Debugf("No preview: %v", err)
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
