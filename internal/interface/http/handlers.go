package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/query"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/interface/http/handlers"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(c *gin.Context) {
	handlers.RespondOK(c, http.StatusOK, gin.H{
		"service": "bible-study-api",
		"version": s.config.Version,
		"status":  "running",
	})
}

// handleHealth returns 200 when every check passes and 503 otherwise.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.HealthChecker == nil {
		handlers.RespondOK(c, http.StatusOK, gin.H{"healthy": true})
		return
	}

	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, handlers.JSONResponse{
			Success:   false,
			Data:      status,
			Error:     &handlers.APIError{Code: "unhealthy", Message: status.Message},
			RequestID: handlers.RequestID(c),
		})
		return
	}
	handlers.RespondOK(c, http.StatusOK, status)
}

// handleLive is a liveness probe that never touches a backend.
func (s *Server) handleLive(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type signUpRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	*identity.Session
	Profile *query.ProfileDTO `json:"profile,omitempty"`
}

// handleSignUp registers an account and returns a session with the new profile.
func (s *Server) handleSignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondError(c, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := c.Request.Context()
	session, err := s.deps.Auth.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}

	resp := authResponse{Session: session}
	if s.deps.GetProfile != nil {
		profile, err := s.deps.GetProfile.Handle(ctx, session.UserID)
		if err != nil {
			logger.FromContext(ctx).Warn("profile lookup after sign-up failed",
				logger.UserID(session.UserID), logger.Err(err))
		} else {
			resp.Profile = profile
		}
	}
	handlers.RespondOK(c, http.StatusCreated, resp)
}

// handleSignIn verifies credentials and returns a session.
func (s *Server) handleSignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondError(c, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	session, err := s.deps.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, authResponse{Session: session})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleMe returns the caller's progress profile.
func (s *Server) handleMe(c *gin.Context) {
	userID := handlers.UserID(c)
	profile, err := retry.DoValue(c.Request.Context(), s.deps.Retry, func(ctx context.Context) (*query.ProfileDTO, error) {
		return s.deps.GetProfile.Handle(ctx, userID)
	})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, profile)
}

// handleDashboard returns profile, level progress and the lesson list.
func (s *Server) handleDashboard(c *gin.Context) {
	q := query.GetDashboardQuery{UserID: handlers.UserID(c)}
	dashboard, err := retry.DoValue(c.Request.Context(), s.deps.Retry, func(ctx context.Context) (*query.DashboardDTO, error) {
		return s.deps.GetDashboard.Handle(ctx, q)
	})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, dashboard)
}

// handleActivity returns the caller's recent activity.
// Query params: limit (default 20).
func (s *Server) handleActivity(c *gin.Context) {
	q := query.GetActivityQuery{UserID: handlers.UserID(c)}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			handlers.RespondError(c, http.StatusBadRequest, "invalid_limit", "limit must be a number")
			return
		}
		q.Limit = limit
	}

	feed, err := retry.DoValue(c.Request.Context(), s.deps.Retry, func(ctx context.Context) (*query.ActivityDTO, error) {
		return s.deps.GetActivity.Handle(ctx, q)
	})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, feed)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListLessons returns the catalog with completion flags. A catalog
// outage degrades to an empty list.
func (s *Server) handleListLessons(c *gin.Context) {
	ctx := c.Request.Context()
	q := query.ListLessonsQuery{UserID: handlers.UserID(c)}

	result, err := retry.DoValue(ctx, s.deps.Retry, func(ctx context.Context) (*query.ListLessonsResult, error) {
		return s.deps.ListLessons.Handle(ctx, q)
	})
	if err != nil {
		if !errors.Is(err, shared.ErrCatalogUnavailable) {
			handlers.RespondDomainError(c, err)
			return
		}
		logger.FromContext(ctx).Warn("lesson catalog unavailable, returning empty list",
			logger.UserID(q.UserID), logger.Err(err))
		result = &query.ListLessonsResult{Lessons: []query.LessonDTO{}}
	}
	handlers.RespondOK(c, http.StatusOK, result)
}

// handleGetLesson returns a single lesson with its content.
func (s *Server) handleGetLesson(c *gin.Context) {
	q := query.GetLessonQuery{UserID: handlers.UserID(c), LessonID: c.Param("id")}
	dto, err := retry.DoValue(c.Request.Context(), s.deps.Retry, func(ctx context.Context) (*query.LessonDTO, error) {
		return s.deps.GetLesson.Handle(ctx, q)
	})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, dto)
}

// handleCompleteLesson runs the completion transaction. A lost race or a
// transient store failure is retried; the retry observes the committed
// completion and reports already_completed.
func (s *Server) handleCompleteLesson(c *gin.Context) {
	cmd := command.CompleteLessonCommand{UserID: handlers.UserID(c), LessonID: c.Param("id")}

	result, err := retry.DoValue(c.Request.Context(), s.deps.Retry, func(ctx context.Context) (*command.CompleteLessonResult, error) {
		return s.deps.CompleteLesson.Handle(ctx, cmd)
	})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}
	handlers.RespondOK(c, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleInitLessons seeds the catalog. Query params: force (bool, default false).
func (s *Server) handleInitLessons(c *gin.Context) {
	var force bool
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handlers.RespondError(c, http.StatusBadRequest, "invalid_force", "force must be true or false")
			return
		}
		force = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := s.deps.SeedLessons.Handle(ctx, command.SeedLessonsCommand{Force: force})
	if err != nil {
		handlers.RespondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Skipped {
		status = http.StatusOK
	}
	handlers.RespondOK(c, status, result)
}
