// Package http implements the REST API of the Bible study service.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/query"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/interface/http/handlers"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/retry"
)

// Config configures the listener and the middleware stack.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// AllowedOrigins for CORS; empty or ["*"] allows any origin without credentials.
	AllowedOrigins []string

	// RateLimitPerMinute per client IP; 0 disables the limiter.
	RateLimitPerMinute int

	// TrustedProxies whose X-Forwarded-For is honoured. Nil trusts none.
	TrustedProxies []string

	// AdminKey guards POST /api/init-lessons. Empty leaves it open.
	AdminKey string

	// Mode is the gin mode. Empty keeps the current one.
	Mode    string
	Version string
}

// DefaultConfig listens on :8080 in release mode.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    time.Minute,
		MaxHeaderBytes: 1 << 20,
		AllowedOrigins: []string{"*"},
		Mode:           gin.ReleaseMode,
		Version:        "dev",
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// AuthService is the identity provider used by the auth endpoints.
type AuthService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	Authenticate(token string) (string, error)
}

// Dependencies are the application handlers behind the routes. Only Auth
// is mandatory; tests leave the rest nil when a route is not exercised.
type Dependencies struct {
	Auth AuthService

	CompleteLesson *command.CompleteLessonHandler
	SeedLessons    *command.SeedLessonsHandler

	ListLessons  *query.ListLessonsHandler
	GetLesson    *query.GetLessonHandler
	GetDashboard *query.GetDashboardHandler
	GetProfile   *query.GetProfileHandler
	GetActivity  *query.GetActivityHandler

	HealthChecker handlers.HealthChecker

	// Retry wraps store-backed handlers; the zero policy makes one attempt.
	Retry retry.Policy

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the gin engine plus the net/http listener that serves it.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger
	limiter    *handlers.RateLimiter
	running    atomic.Bool
}

// NewServer builds the engine, installs middleware and registers routes.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("http: auth service is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}

	if err := s.engine.SetTrustedProxies(config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("http: trusted proxies: %w", err)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	s.engine.Use(
		handlers.RecoveryMiddleware(s.logger),
		handlers.RequestIDMiddleware(s.logger),
		handlers.LoggingMiddleware(s.logger),
		handlers.SecurityHeadersMiddleware(),
		cors.New(s.corsConfig()),
	)

	if s.config.RateLimitPerMinute > 0 {
		s.limiter = handlers.NewRateLimiter(s.config.RateLimitPerMinute, time.Minute)
		s.engine.Use(s.limiter.Middleware())
	}

	s.engine.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, http.StatusNotFound, "route_not_found", "Route not found")
	})
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", handlers.HeaderRequestID, handlers.HeaderAdminKey},
		ExposeHeaders: []string{handlers.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}

	origins := s.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/live", s.handleLive)

	api := s.engine.Group("/api")

	// public
	api.POST("/auth/signup", s.handleSignUp)
	api.POST("/auth/signin", s.handleSignIn)

	// signed-in user
	protected := api.Group("")
	protected.Use(handlers.BearerAuth(s.deps.Auth))
	protected.GET("/me", s.handleMe)
	protected.GET("/dashboard", s.handleDashboard)
	protected.GET("/activity", s.handleActivity)
	protected.GET("/lessons", s.handleListLessons)
	protected.GET("/lessons/:id", s.handleGetLesson)
	protected.POST("/lessons/:id/complete", s.handleCompleteLesson)

	// admin
	api.POST("/init-lessons", handlers.AdminKeyAuth(s.config.AdminKey), s.handleInitLessons)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Handler exposes the gin engine, for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("http: server already running")
	}
	s.logger.Info("listening", logger.String("address", s.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: serve: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one
// error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Address() string {
	return s.config.Address()
}
