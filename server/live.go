package server

import (
	"net/http"

	"eaiser/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

func (s *Server) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard.Load(c.Request.Context()))
}

func (s *Server) RefreshDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard.Refresh(c.Request.Context()))
}

// ListenIssues streams dashboard refresh events.
func (s *Server) ListenIssues(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Error upgrading connection to WebSocket: %v", err)
		return
	}
	s.hub.Subscribe(conn, websocket.TopicIssues)
}

// ListenWizard streams snapshots of one wizard session.
func (s *Server) ListenWizard(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Error upgrading connection to WebSocket: %v", err)
		return
	}
	s.hub.Subscribe(conn, websocket.WizardTopic(sess.ID))
}
