package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Help(c *gin.Context) {
	c.String(http.StatusOK, `
	eaiser reporting gateway:
	Report civic issues with a photo, a location and an AI generated report.
	See /api/config for enabled features.
	`)
}

func Landing(c *gin.Context) {
	c.String(http.StatusOK, `eaiser
Spot a pothole, a broken streetlight or overflowing trash? Snap a photo, pin the
location and let us draft the report for your local authorities.

Start a report:   POST /api/wizard
Issue dashboard:  GET  /api/dashboard
`)
}
