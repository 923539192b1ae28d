package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/models"
	"eaiser/workflow"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

type manualArgs struct {
	Enabled bool `json:"enabled"`
}

type locationArgs struct {
	Address   *string  `json:"address"`
	ZipCode   *string  `json:"zip_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type pinArgs struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type editArgs struct {
	Editing bool `json:"editing"`
}

type declineArgs struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateWizard(c *gin.Context) {
	sess := s.newSession()
	s.sessions.Add(sess)
	log.Infof("Session %s created", sess.ID)
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "state": sess.Controller.Snapshot()})
}

func (s *Server) GetWizard(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		respond(c, sess)
	}
}

func (s *Server) DeleteWizard(c *gin.Context) {
	if !s.sessions.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or expired session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) UploadImage(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, sess, workflow.ErrImageRequired)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, sess, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		fail(c, sess, err)
		return
	}
	if len(data) > maxUploadBytes {
		fail(c, sess, eimage.ErrTooLarge)
		return
	}

	if err := sess.Controller.AttachImage(c.Request.Context(), fh.Filename, data); err != nil {
		fail(c, sess, err)
		return
	}
	respond(c, sess)
}

func (s *Server) SetManual(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args manualArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	s.apply(c, sess, sess.Controller.SetManual(args.Enabled))
}

func (s *Server) Next(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		s.apply(c, sess, sess.Controller.Next())
	}
}

func (s *Server) Back(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		s.apply(c, sess, sess.Controller.Back())
	}
}

// SetLocation applies typed values without any lookup.
func (s *Server) SetLocation(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args locationArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	if (args.Latitude == nil) != (args.Longitude == nil) {
		badRequest(c, errors.New("latitude and longitude must be given together"))
		return
	}

	if args.Address != nil {
		sess.Resolver.SetAddressText(*args.Address)
	}
	if args.ZipCode != nil {
		sess.Resolver.SetZipText(*args.ZipCode)
	}
	if args.Latitude != nil {
		if err := sess.Resolver.SetCoordinates(*args.Latitude, *args.Longitude); err != nil {
			fail(c, sess, err)
			return
		}
	}
	respond(c, sess)
}

func (s *Server) DropPin(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args pinArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	_, err := sess.Resolver.DropPin(c.Request.Context(), args.Latitude, args.Longitude)
	s.apply(c, sess, err)
}

func (s *Server) SelectPlace(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args location.Suggestion
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	_, err := sess.Resolver.Select(c.Request.Context(), args)
	s.apply(c, sess, err)
}

func (s *Server) Autocomplete(c *gin.Context) {
	suggestions, err := s.suggester.Suggest(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "maps_status": s.status.String()})
		return
	}
	if suggestions == nil {
		suggestions = []location.Suggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// Submit keeps running when the browser disconnects; the wizard discards the
// result if it has been reset meanwhile.
func (s *Server) Submit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	s.apply(c, sess, sess.Controller.Submit(ctx))
}

func (s *Server) SetEditing(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args editArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	s.apply(c, sess, sess.Controller.SetEditing(args.Editing))
}

func (s *Server) UpdateReport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var report models.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		badRequest(c, err)
		return
	}
	s.apply(c, sess, sess.Controller.ReplaceReport(&report))
}

func (s *Server) Accept(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if err := sess.Controller.Accept(ctx); err != nil {
		fail(c, sess, err)
		return
	}
	sess.Resolver.Clear()
	respond(c, sess)
}

func (s *Server) Decline(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var args declineArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	s.apply(c, sess, sess.Controller.Decline(ctx, args.Reason))
}

func (s *Server) Reset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if sess.Camera != nil {
		sess.Camera.Cancel()
	}
	sess.Controller.Reset()
	sess.Resolver.Clear()
	respond(c, sess)
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or expired session"})
		return nil, false
	}
	return sess, true
}

func (s *Server) apply(c *gin.Context, sess *Session, err error) {
	if err != nil {
		fail(c, sess, err)
		return
	}
	respond(c, sess)
}

func respond(c *gin.Context, sess *Session) {
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "state": sess.Controller.Snapshot()})
}

func fail(c *gin.Context, sess *Session, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("Session %s: %v", sess.ID, err)
	} else {
		log.Debugf("Session %s: %v", sess.ID, err)
	}
	body := gin.H{"error": err.Error(), "id": sess.ID, "state": sess.Controller.Snapshot()}
	var failure *workflow.Failure
	if errors.As(err, &failure) {
		body["error"] = failure.Message
		body["failure"] = failure
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
