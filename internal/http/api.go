package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mapro-backend/internal/auth"
	"mapro-backend/internal/service"
)

const (
	ctxUserIDKey   = "userID"
	ctxUsernameKey = "username"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auths     service.AuthService
	users     service.UserService
	prefs     service.PreferenceService
	activity  service.ActivityLogger
	jwtSecret []byte
	logger    *logrus.Logger
}

func NewHandler(
	auths service.AuthService,
	users service.UserService,
	prefs service.PreferenceService,
	activity service.ActivityLogger,
	jwtSecret string,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		auths:     auths,
		users:     users,
		prefs:     prefs,
		activity:  activity,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", h.signUp)
			authGroup.POST("/login", h.login)
			authGroup.GET("/validate", h.validateToken)
		}

		userGroup := api.Group("/user", h.authMiddleware())
		{
			userGroup.GET("/pfr", h.listCategories)
			userGroup.POST("/pfr", h.getPreferences)
			userGroup.POST("/pfr/save", h.savePreferences)
			userGroup.PATCH("/:id", h.updateUserName)
			userGroup.GET("/logs", h.getLogs)
			userGroup.POST("/logs/archive", h.archiveLogs)
			userGroup.GET("/logs/archives", h.listArchives)
		}
	}
}

// authMiddleware gates protected routes behind a valid bearer token and
// stashes the token's identity in the request context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.ParseToken(token, h.jwtSecret)
		if err != nil || !h.auths.ValidateToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// the subject must still resolve to an account; a well signed
		// token for a vanished user is worthless
		user, err := h.auths.FindByUsername(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown token subject"})
			return
		}

		c.Set(ctxUserIDKey, user.ID)
		c.Set(ctxUsernameKey, user.Username)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return header
}

func identityFromContext(c *gin.Context) (int64, string) {
	userID, _ := c.Get(ctxUserIDKey)
	username, _ := c.Get(ctxUsernameKey)
	id, _ := userID.(int64)
	name, _ := username.(string)
	return id, name
}

// audit records an action after a successful operation. The audit store
// is best-effort observability: a failed write is logged and absorbed,
// never surfaced to the client.
func (h *Handler) audit(c *gin.Context, userID int64, username, action, detail string) {
	if err := h.activity.Log(c.Request.Context(), userID, username, action, detail); err != nil {
		h.logger.Warnf("audit write failed (user=%s action=%s): %v", username, action, err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
