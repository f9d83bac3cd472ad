// Package server exposes the submission pipeline to the local rendering layer over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/submission"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	authorIDContextKey = "solace_author_id"
	premiumContextKey  = "solace_premium"

	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingPipeline   = errors.New("submission pipeline dependency required")
	errMissingQueue      = errors.New("offline queue dependency required")
	errMissingEngagement = errors.New("engagement reader dependency required")
	errMissingAuthors    = errors.New("author resolver dependency required")
	errMissingRealtime   = errors.New("realtime dispatcher dependency required")
)

// Pipeline is the orchestrator surface used by the handlers.
type Pipeline interface {
	Submit(ctx context.Context, req submission.Request) (submission.Result, error)
	Drain(ctx context.Context) (submission.DrainReport, error)
	CompleteAction(ctx context.Context, authorID journal.AuthorID, entryID journal.EntryID) (bool, error)
	RecordActivity(ctx context.Context, authorID journal.AuthorID, kind engagement.ActivityKind) (bool, error)
	IsOnline() bool
}

// EngagementReader reads the ledger view for an author.
type EngagementReader interface {
	Snapshot(ctx context.Context, authorID string) (engagement.Snapshot, error)
}

// SessionValidator validates the session cookie on a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// AuthorResolver maps sessions and the device onto author ids.
type AuthorResolver interface {
	ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
	DeviceAuthorID(ctx context.Context) (string, error)
}

// Dependencies wires the HTTP handler. Sessions is optional: without it every request is the device author.
type Dependencies struct {
	Pipeline          Pipeline
	Queue             offline.Queue
	Engagement        EngagementReader
	Sessions          SessionValidator
	Authors           AuthorResolver
	Realtime          *realtime.Dispatcher
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Pipeline == nil:
		return nil, errMissingPipeline
	case deps.Queue == nil:
		return nil, errMissingQueue
	case deps.Engagement == nil:
		return nil, errMissingEngagement
	case deps.Authors == nil:
		return nil, errMissingAuthors
	case deps.Realtime == nil:
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		pipeline:   deps.Pipeline,
		queue:      deps.Queue,
		engagement: deps.Engagement,
		sessions:   deps.Sessions,
		authors:    deps.Authors,
		realtime:   deps.Realtime,
		heartbeat:  heartbeat,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.Use(handler.resolveAuthor)
	api.POST("/entries", handler.handleSubmitEntry)
	api.POST("/entries/:id/action-completed", handler.handleActionCompleted)
	api.POST("/activities", handler.handleActivity)
	api.GET("/queue", handler.handleQueue)
	api.POST("/queue/drain", handler.handleDrain)
	api.GET("/engagement", handler.handleEngagement)
	api.GET("/events", handler.handleEvents)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return false }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

type httpHandler struct {
	pipeline   Pipeline
	queue      offline.Queue
	engagement EngagementReader
	sessions   SessionValidator
	authors    AuthorResolver
	realtime   *realtime.Dispatcher
	heartbeat  time.Duration
	logger     *zap.Logger
}

// resolveAuthor keys the request by the signed-in author when a valid session cookie is present
// and by the device author when there is no cookie. A present but invalid cookie is rejected.
func (h *httpHandler) resolveAuthor(c *gin.Context) {
	ctx := c.Request.Context()
	if h.sessions != nil {
		claims, err := h.sessions.ValidateRequest(c.Request)
		switch {
		case err == nil:
			authorID, resolveErr := h.authors.ResolveCanonicalUserID(ctx, claims)
			if resolveErr != nil {
				h.logger.Warn("session identity resolution failed", zap.Error(resolveErr))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Set(authorIDContextKey, authorID)
			c.Set(premiumContextKey, claims.IsPremium())
			c.Next()
			return
		case !errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Warn("session validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	authorID, err := h.authors.DeviceAuthorID(ctx)
	if err != nil {
		h.logger.Error("device identity unavailable", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity_unavailable"})
		return
	}
	c.Set(authorIDContextKey, authorID)
	c.Set(premiumContextKey, false)
	c.Next()
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": h.pipeline.IsOnline()})
}

func authorFromContext(c *gin.Context) journal.AuthorID {
	return journal.AuthorID(c.GetString(authorIDContextKey))
}
