package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) cameraSession(c *gin.Context) (*Session, bool) {
	sess, ok := s.session(c)
	if !ok {
		return nil, false
	}
	if sess.Camera == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No camera is configured"})
		return nil, false
	}
	return sess, true
}

func (s *Server) StartCamera(c *gin.Context) {
	if sess, ok := s.cameraSession(c); ok {
		s.apply(c, sess, sess.Camera.Start(c.Request.Context()))
	}
}

// CaptureCamera takes a still and attaches it like an uploaded photo.
func (s *Server) CaptureCamera(c *gin.Context) {
	sess, ok := s.cameraSession(c)
	if !ok {
		return
	}
	acquired, err := sess.Camera.Capture(c.Request.Context())
	if err != nil {
		fail(c, sess, err)
		return
	}
	s.apply(c, sess, sess.Controller.AttachAcquired(acquired))
}

func (s *Server) CancelCamera(c *gin.Context) {
	if sess, ok := s.cameraSession(c); ok {
		sess.Camera.Cancel()
		respond(c, sess)
	}
}
