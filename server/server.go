package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"eaiser/capture"
	"eaiser/config"
	"eaiser/dashboard"
	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/metrics"
	"eaiser/websocket"
	"eaiser/workflow"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

const (
	EndPointHelp      = "/help"
	EndPointHealth    = "/health"
	EndPointLanding   = "/"
	EndPointConfig    = "/api/config"
	EndPointMetrics   = "/metrics"
	EndPointPlaces    = "/api/places/autocomplete"
	EndPointDashboard = "/api/dashboard"
	EndPointWSIssues  = "/ws/issues"
	EndPointWSWizard  = "/ws/wizard/:id"

	EndPointWizard       = "/api/wizard"
	EndPointWizardByID   = "/api/wizard/:id"
	EndPointGoogleLogin  = "/auth/google/login"
	EndPointGoogleReturn = "/auth/google/callback"

	sessionExpiryInterval = time.Minute
	// maxUploadBytes bounds the raw request body. The image size ceiling is
	// applied after HEIC conversion.
	maxUploadBytes = 32 << 20
)

// Backend is everything the gateway needs from the reporting backend.
type Backend interface {
	workflow.Backend
	dashboard.Lister
}

// Server is the HTTP gateway exposing the report wizard to browsers.
type Server struct {
	cfg       *config.Config
	backend   Backend
	provider  location.Provider
	status    location.ProviderStatus
	suggester *location.Resolver
	acquirer  *eimage.Acquirer
	hub       *websocket.Hub
	dashboard *dashboard.Service
	sessions  *SessionStore
	oauth     *oauth2.Config
	upgrader  gws.Upgrader
}

func New(cfg *config.Config, backend Backend, provider location.Provider, status location.ProviderStatus) *Server {
	hub := websocket.NewHub()
	s := &Server{
		cfg:       cfg,
		backend:   backend,
		provider:  provider,
		status:    status,
		suggester: location.NewResolver(provider, status, nil, location.WithRateLimit(cfg.GeocodeRPS)),
		acquirer:  eimage.NewAcquirer(),
		hub:       hub,
		dashboard: dashboard.NewService(backend, hub, websocket.TopicIssues),
		sessions:  NewSessionStore(cfg.SessionTTL),
		upgrader: gws.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if cfg.SocialSignInEnabled() {
		s.oauth = googleOAuthConfig(cfg)
	}
	return s
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = maxUploadBytes
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/"})))
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 || containsWildcard(s.cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	router.GET(EndPointLanding, Landing)
	router.GET(EndPointHelp, Help)
	router.GET(EndPointHealth, s.Health)
	router.GET(EndPointConfig, s.ClientConfig)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))
	router.GET(EndPointPlaces, s.Autocomplete)
	router.GET(EndPointDashboard, s.Dashboard)
	router.POST(EndPointDashboard+"/refresh", s.RefreshDashboard)
	router.GET(EndPointWSIssues, s.ListenIssues)
	router.GET(EndPointWSWizard, s.ListenWizard)

	router.POST(EndPointWizard, s.CreateWizard)
	wizard := router.Group(EndPointWizardByID)
	{
		wizard.GET("", s.GetWizard)
		wizard.DELETE("", s.DeleteWizard)
		wizard.POST("/image", s.UploadImage)
		wizard.POST("/manual", s.SetManual)
		wizard.POST("/next", s.Next)
		wizard.POST("/back", s.Back)
		wizard.POST("/location", s.SetLocation)
		wizard.POST("/location/pin", s.DropPin)
		wizard.POST("/location/select", s.SelectPlace)
		wizard.POST("/submit", s.Submit)
		wizard.POST("/edit", s.SetEditing)
		wizard.PUT("/report", s.UpdateReport)
		wizard.POST("/accept", s.Accept)
		wizard.POST("/decline", s.Decline)
		wizard.POST("/reset", s.Reset)
		wizard.GET("/authorities", s.GetAuthorities)
		wizard.POST("/authorities/toggle", s.ToggleAuthority)
		wizard.POST("/authorities/save", s.SaveAuthorities)
		wizard.POST("/authorities/email", s.EmailAuthorities)
		wizard.POST("/camera/start", s.StartCamera)
		wizard.POST("/camera/capture", s.CaptureCamera)
		wizard.POST("/camera/cancel", s.CancelCamera)
	}

	router.GET(EndPointGoogleLogin, s.GoogleLogin)
	router.GET(EndPointGoogleReturn, s.GoogleCallback)

	return router
}

// StartService serves until ctx is cancelled.
func (s *Server) StartService(ctx context.Context) error {
	log.Info("Starting the service...")
	metrics.Register()

	go s.hub.Run(ctx)
	go s.sessions.RunExpiry(ctx, sessionExpiryInterval)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s (backend %s)", srv.Addr, s.cfg.BackendURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"service":           "eaiser-gateway",
		"sessions":          s.sessions.Len(),
		"connected_clients": s.hub.ClientCount(""),
		"last_event_seq":    s.hub.LastSeq(),
	})
}

// ClientConfig tells the browser which optional features are usable.
func (s *Server) ClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"build_mode":            s.cfg.BuildMode,
		"maps_status":           s.status.String(),
		"maps_message":          s.status.Message(),
		"social_sign_in":        s.cfg.SocialSignInEnabled(),
		"camera":                s.cfg.CameraSnapshotURL != "",
		"max_image_bytes":       eimage.MaxImageBytes,
		"confidence_threshold":  workflow.ConfidenceThreshold,
		"authority_zip_minimum": workflow.MinZipLength,
	})
}

func (s *Server) newSession() *Session {
	id := uuid.NewString()
	topic := websocket.WizardTopic(id)

	ctl := workflow.New(s.backend,
		workflow.WithAcquirer(s.acquirer),
		workflow.WithRefresher(func(context.Context) {
			go s.dashboard.Refresh(context.Background())
		}),
		workflow.WithObserver(func(snap workflow.Snapshot) {
			if s.hub.ClientCount(topic) > 0 {
				s.hub.Broadcast(topic, "wizard.state", snap)
			}
		}),
	)

	sess := &Session{ID: id, Controller: ctl}
	sess.Resolver = location.NewResolver(s.provider, s.status, func(rec location.Record) {
		if err := ctl.SetLocation(rec); err != nil {
			log.Debugf("Session %s: location not applied: %v", id, err)
		}
	}, location.WithRateLimit(s.cfg.GeocodeRPS))

	if s.cfg.CameraSnapshotURL != "" {
		sess.Camera = capture.NewSession(capture.NewSnapshotDevice(s.cfg.CameraSnapshotURL), s.acquirer)
	}
	return sess
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
