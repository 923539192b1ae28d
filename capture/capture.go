package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	eimage "eaiser/image"

	"github.com/apex/log"
	"golang.org/x/image/draw"
)

var (
	ErrPermissionDenied = errors.New("Camera access was denied. Allow camera access or upload a photo instead.")
	ErrNoCamera         = errors.New("No camera is available on this device. Upload a photo instead.")
	ErrNotStarted       = errors.New("camera is not started")
	ErrAlreadyStarted   = errors.New("camera is already started")
)

// Device opens a video stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until closed.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Session owns at most one open stream and releases it on every exit path.
type Session struct {
	device   Device
	acquirer *eimage.Acquirer

	mu     sync.Mutex
	stream Stream
}

func NewSession(device Device, acquirer *eimage.Acquirer) *Session {
	if acquirer == nil {
		acquirer = eimage.NewAcquirer()
	}
	return &Session{device: device, acquirer: acquirer}
}

// Start opens the camera stream.
func (s *Session) Start(ctx context.Context) error {
	if s.device == nil {
		return ErrNoCamera
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return ErrAlreadyStarted
	}

	stream, err := s.device.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoCamera) {
			return err
		}
		return fmt.Errorf("%w (%v)", ErrNoCamera, err)
	}
	s.stream = stream
	log.Debug("Camera stream started")
	return nil
}

// Active reports whether a stream is currently held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Capture takes a still from the current stream, encodes it and releases
// the stream whether or not the capture succeeded.
func (s *Session) Capture(ctx context.Context) (*eimage.Acquired, error) {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return nil, ErrNotStarted
	}
	defer release(stream)

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}

	surface := image.NewRGBA(frame.Bounds())
	draw.Draw(surface, surface.Bounds(), frame, frame.Bounds().Min, draw.Src)

	return s.acquirer.FromFrame(surface, "")
}

// Cancel releases the stream without capturing. Safe to call when idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		release(stream)
		log.Debug("Camera capture cancelled")
	}
}

// Close tears the session down.
func (s *Session) Close() error {
	s.Cancel()
	return nil
}

func release(stream Stream) {
	if err := stream.Close(); err != nil {
		log.Warnf("Failed to release camera stream: %v", err)
	}
}
