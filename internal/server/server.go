package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/projectdesk/api-proxy/internal/billing"
	"github.com/projectdesk/api-proxy/internal/chat"
	"github.com/projectdesk/api-proxy/internal/config"
	"github.com/projectdesk/api-proxy/internal/customers"
	"github.com/projectdesk/api-proxy/internal/identity"
	"github.com/projectdesk/api-proxy/internal/metrics"
	"github.com/projectdesk/api-proxy/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Completer answers chat requests
type Completer interface {
	Complete(ctx context.Context, req models.ChatRequest) (string, error)
}

// PortalOpener creates billing portal sessions
type PortalOpener interface {
	Open(ctx context.Context, req billing.Request) (string, error)
}

// Server represents the API server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	router *gin.Engine

	chat      Completer
	chatErr   error
	portal    PortalOpener
	portalErr error

	closers []func()
}

// Option replaces a collaborator built from configuration
type Option func(*Server)

// WithCompleter uses c instead of an upstream chat client
func WithCompleter(c Completer) Option {
	return func(s *Server) { s.chat = c }
}

// WithPortal uses p instead of the Supabase and Stripe backed portal
func WithPortal(p PortalOpener) Option {
	return func(s *Server) { s.portal = p }
}

// New creates a new server instance. A handler whose configuration is
// incomplete is still mounted and answers every request with a 500.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chat == nil {
		s.initChat()
	}
	if s.portal == nil {
		if err := s.initPortal(); err != nil {
			return nil, err
		}
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) initChat() {
	client, err := chat.NewClient(s.cfg.Chat(), s.logger.Named("chat"))
	if err != nil {
		s.logger.Warn("Chat proxy is not configured", zap.Error(err))
		s.chatErr = err
		return
	}
	s.chat = client
}

func (s *Server) initPortal() error {
	pc := s.cfg.Portal()
	if err := pc.Validate(); err != nil {
		s.logger.Warn("Billing portal proxy is not configured", zap.Error(err))
		s.portalErr = err
		return nil
	}

	log := s.logger.Named("billing")
	verifier := identity.NewSupabaseVerifier(pc.SupabaseURL, pc.AnonKey, pc.Timeout, log)

	var lookup customers.Lookup
	if pc.DatabaseDSN != "" {
		store, err := customers.NewPostgresStore(context.Background(), pc.DatabaseDSN, pc.CustomersTable)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, store.Close)
		lookup = store
		log.Info("Customer lookup uses direct database connection")
	} else {
		lookup = customers.NewRESTStore(pc.SupabaseURL, pc.ServiceRoleKey, pc.CustomersTable, pc.Timeout, log)
	}

	sessions := billing.NewStripePortal(pc.StripeSecretKey, pc.StripeAPIBase, pc.Timeout, log)
	s.portal = billing.NewPortal(verifier, lookup, sessions, pc.DefaultOrigin, pc.ReturnPath, log)
	return nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close releases connections held by the upstream clients
func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(s.recoverJSON))
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggerMiddleware())
	s.router.Use(metrics.Middleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}

	s.router.Use(bodyLimitMiddleware(s.cfg.Server.MaxRequestSize))
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ping", s.ping)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// method checks happen inside the handlers so any verb gets a JSON 405
	api := s.router.Group("/api")
	{
		api.Any("/chat", s.chatProxy)
		api.Any("/billing/portal", s.portalProxy)
	}

	// paths used by the hosted front end
	functions := s.router.Group("/.netlify/functions")
	{
		functions.Any("/openai-proxy", s.chatProxy)
		functions.Any("/create-portal-session", s.portalProxy)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"handlers": gin.H{
			"chat":   configured(s.chatErr),
			"portal": configured(s.portalErr),
		},
	})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func configured(err error) string {
	if err != nil {
		return "unconfigured"
	}
	return "ok"
}
