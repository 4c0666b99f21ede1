package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/auth"
	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const callerContextKey = "forum_caller"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingForumService     = errors.New("forum service dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// IdentityRecorder maps session claims onto a canonical user id and stores the caller's profile.
type IdentityRecorder interface {
	RememberIdentity(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// AdminPolicy decides whether an authenticated caller may use admin routes.
type AdminPolicy interface {
	IsAdmin(userID string, roles []string) bool
}

// Dependencies wires the HTTP surface to the forum service and auth collaborators.
type Dependencies struct {
	SessionValidator SessionValidator
	Identities       IdentityRecorder
	AdminPolicy      AdminPolicy
	Forum            *forum.Service
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router serving the forum API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Forum == nil {
		return nil, errMissingForumService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:   deps.SessionValidator,
		identities: deps.Identities,
		admins:     deps.AdminPolicy,
		forum:      deps.Forum,
		logger:     logger,
	}

	router.GET("/categories", handler.handleListCategories)
	router.POST("/init-categories", handler.handleInitCategories)
	router.GET("/topics", handler.handleListTopics)
	router.GET("/topics/:id", handler.handleGetTopic)
	router.GET("/search", handler.handleSearchTopics)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/topics", handler.handleCreateTopic)
	protected.POST("/topics/:id/posts", handler.handleCreatePost)
	protected.PUT("/posts/:id", handler.handleEditPost)
	protected.DELETE("/posts/:id", handler.handleDeletePost)
	protected.POST("/posts/:id/vote", handler.handleVotePost)

	admin := router.Group("/")
	admin.Use(handler.authorizeRequest, handler.requireAdmin)
	admin.POST("/categories", handler.handleCreateCategory)
	admin.PUT("/categories/:id", handler.handleUpdateCategory)
	admin.DELETE("/categories/:id", handler.handleDeleteCategory)
	admin.GET("/admin/categories", handler.handleAdminCategories)
	admin.GET("/admin/topics", handler.handleAdminTopics)
	admin.PUT("/admin/topics/:id", handler.handleSetTopicFlags)
	admin.GET("/admin/posts", handler.handleAdminPosts)
	admin.DELETE("/admin/posts/:id", handler.handleAdminDeletePost)

	return router, nil
}

type httpHandler struct {
	sessions   SessionValidator
	identities IdentityRecorder
	admins     AdminPolicy
	forum      *forum.Service
	logger     *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startedAt)),
		)
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredSessionToken), errors.Is(err, jwt.ErrTokenExpired):
			h.logger.Info("token validation failed", zap.Error(err))
		case errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Debug("token validation failed", zap.Error(err))
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if h.identities != nil {
		canonical, err := h.identities.RememberIdentity(c.Request.Context(), claims)
		if err != nil {
			h.logger.Error("failed to resolve user identity", zap.String("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to resolve user identity"})
			return
		}
		userID = canonical
	}

	caller := forum.Caller{
		UserID:      userID,
		DisplayName: claims.UserDisplayName,
		Email:       claims.UserEmail,
	}
	if h.admins != nil {
		caller.IsAdmin = h.admins.IsAdmin(userID, claims.UserRoles)
	}
	c.Set(callerContextKey, caller)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	if !callerFrom(c).IsAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Admin access required"})
		return
	}
	c.Next()
}

func callerFrom(c *gin.Context) forum.Caller {
	value, ok := c.Get(callerContextKey)
	if !ok {
		return forum.Caller{}
	}
	caller, _ := value.(forum.Caller)
	return caller
}
