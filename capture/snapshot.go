package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
)

const maxSnapshotBytes = 20 * 1024 * 1024

// SnapshotDevice is a network camera exposing a still-image URL.
type SnapshotDevice struct {
	URL        string
	HTTPClient *http.Client
}

func NewSnapshotDevice(url string) *SnapshotDevice {
	return &SnapshotDevice{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Open probes the camera once so that unreachable or forbidden cameras fail early.
func (d *SnapshotDevice) Open(ctx context.Context) (Stream, error) {
	if d.URL == "" {
		return nil, ErrNoCamera
	}
	s := &snapshotStream{device: d}
	img, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.last = img
	return s, nil
}

type snapshotStream struct {
	device *SnapshotDevice

	mu     sync.Mutex
	last   image.Image
	closed bool
}

func (s *snapshotStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrNotStarted
	}

	img, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.last != nil {
			log.Warnf("Snapshot failed, using last frame: %v", err)
			return s.last, nil
		}
		return nil, err
	}
	s.mu.Lock()
	s.last = img
	s.mu.Unlock()
	return img, nil
}

func (s *snapshotStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.last = nil
	return nil
}

func (s *snapshotStream) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.device.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}

	client := s.device.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrNoCamera, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w (status %d)", ErrNoCamera, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, nil
}
