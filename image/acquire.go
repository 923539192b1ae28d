package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"eaiser/metrics"

	"github.com/apex/log"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes is the upload ceiling, checked after any conversion.
	MaxImageBytes = 5 * 1024 * 1024

	heicJPEGQuality  = 80
	frameJPEGQuality = 90
)

var (
	ErrTooLarge    = errors.New("Image must be smaller than 5MB")
	ErrConversion  = errors.New("Could not convert the HEIC image. Please try a JPEG or PNG.")
	ErrUnsupported = errors.New("Unsupported image format. Please upload a JPEG, PNG, WebP, GIF or HEIC image.")
	ErrEmpty       = errors.New("The selected file is empty")
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/heic": true,
	"image/heif": true,
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// Acquired is an image ready for upload.
type Acquired struct {
	Data        []byte
	Name        string
	ContentType string
	// Preview is a small JPEG data URL, empty when the image could not be decoded.
	Preview string
	// Converted is set when the input was HEIC/HEIF and was re-encoded as JPEG.
	Converted bool
}

// Acquirer normalizes user-provided images.
type Acquirer struct {
	MaxBytes    int
	PreviewSize int

	decodeHEIC func(io.Reader) (image.Image, error)
	heicExif   func(io.ReaderAt) ([]byte, error)
}

func NewAcquirer() *Acquirer {
	return &Acquirer{
		MaxBytes:    MaxImageBytes,
		PreviewSize: previewSize,
		decodeHEIC:  decodeHEIC,
		heicExif:    extractHEICExif,
	}
}

// FromFile validates a picked file, converting HEIC/HEIF to JPEG first.
// On error nothing usable is returned and the caller keeps its prior image.
func (a *Acquirer) FromFile(ctx context.Context, name string, data []byte) (*Acquired, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctype := DetectType(name, data)
	if !acceptedTypes[ctype] {
		metrics.ImageRejectionsTotal.WithLabelValues("unsupported").Inc()
		log.Warnf("Rejected %s: unsupported type %s", name, ctype)
		return nil, ErrUnsupported
	}

	out := &Acquired{Data: data, Name: name, ContentType: ctype}
	if ctype == "image/heic" || ctype == "image/heif" {
		converted, err := a.convertHEIC(data)
		if err != nil {
			metrics.ImageRejectionsTotal.WithLabelValues("conversion").Inc()
			log.Errorf("HEIC conversion of %s failed: %v", name, err)
			return nil, fmt.Errorf("%w (%v)", ErrConversion, err)
		}
		out.Data = converted
		out.ContentType = "image/jpeg"
		out.Name = jpegName(name)
		out.Converted = true
		log.Infof("Converted %s to JPEG: %d bytes -> %d bytes", name, len(data), len(converted))
	}

	if err := a.checkSize(out.Data); err != nil {
		return nil, err
	}

	out.Preview = a.preview(out.Data)
	return out, nil
}

// FromFrame encodes a captured camera frame to JPEG and applies the size check.
func (a *Acquirer) FromFrame(frame image.Image, name string) (*Acquired, error) {
	if frame == nil {
		return nil, ErrEmpty
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode camera frame: %w", err)
	}
	if err := a.checkSize(buf.Bytes()); err != nil {
		return nil, err
	}
	if name == "" {
		name = "camera-capture.jpg"
	}
	return &Acquired{
		Data:        buf.Bytes(),
		Name:        name,
		ContentType: "image/jpeg",
		Preview:     a.previewFromImage(frame),
	}, nil
}

func (a *Acquirer) checkSize(data []byte) error {
	limit := a.MaxBytes
	if limit <= 0 {
		limit = MaxImageBytes
	}
	if len(data) > limit {
		metrics.ImageRejectionsTotal.WithLabelValues("too_large").Inc()
		log.Warnf("Rejected image of %d bytes, limit is %d", len(data), limit)
		return ErrTooLarge
	}
	return nil
}

// DetectType sniffs the content type, falling back to the file extension
// when the content is not recognized.
func DetectType(name string, data []byte) string {
	m := mimetype.Detect(data)
	for ; m != nil; m = m.Parent() {
		if acceptedTypes[m.String()] {
			return m.String()
		}
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return mimetype.Detect(data).String()
}

func jpegName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}
