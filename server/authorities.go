package server

import (
	"net/http"
	"strings"

	"eaiser/models"

	"github.com/gin-gonic/gin"
)

// GetAuthorities returns the selector state. With ?zip= the candidates for
// that zip are fetched first.
func (s *Server) GetAuthorities(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	selector := sess.Controller.Selector()
	if zip := strings.TrimSpace(c.Query("zip")); zip != "" {
		if err := selector.Load(c.Request.Context(), zip); err != nil {
			fail(c, sess, err)
			return
		}
	}
	selector.Open()
	s.authorityState(c, sess)
}

func (s *Server) ToggleAuthority(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var a models.Authority
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	sess.Controller.Selector().Toggle(a)
	s.authorityState(c, sess)
}

func (s *Server) SaveAuthorities(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.apply(c, sess, sess.Controller.SaveSelection())
}

func (s *Server) EmailAuthorities(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.Controller.SendAuthorityEmails(c.Request.Context()); err != nil {
		fail(c, sess, err)
		return
	}
	s.authorityState(c, sess)
}

func (s *Server) authorityState(c *gin.Context, sess *Session) {
	selector := sess.Controller.Selector()
	c.JSON(http.StatusOK, gin.H{
		"zip_code":     selector.ZipCode(),
		"groups":       selector.Groups(),
		"candidates":   selector.Candidates(),
		"selected":     selector.Selected(),
		"open":         selector.IsOpen(),
		"fetch_status": selector.FetchStatus(),
		"send_status":  selector.SendStatus(),
		"panel":        sess.Controller.AuthorityPanel(),
	})
}
