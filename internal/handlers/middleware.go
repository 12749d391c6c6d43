package handlers

import (
	"clinic-auth/internal/config"
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"clinic-auth/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "clinic_auth_session"

// Middleware guards routes behind a live session cookie and, for admin
// surfaces, a minimum role level.
type Middleware struct {
	sessionService services.ISessionService
	accessService  services.IAccessService
	authCfg        config.AuthConfig
}

func NewMiddleware(sessionService services.ISessionService, accessService services.IAccessService, authCfg config.AuthConfig) *Middleware {
	return &Middleware{
		sessionService: sessionService,
		accessService:  accessService,
		authCfg:        authCfg,
	}
}

// RequireSession validates the session cookie and stashes the session on the
// gin context. An expired session clears the cookie so the browser stops
// replaying it.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, err := c.Cookie(m.authCfg.CookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse("NO_SESSION", "Authentication required"))
			return
		}

		session, err := m.sessionService.Validate(c.Request.Context(), rawToken)
		if err != nil {
			m.clearCookie(c)
			code := "INVALID_SESSION"
			if errors.Is(err, services.ErrSessionExpired) {
				code = "SESSION_EXPIRED"
			}
			status := http.StatusUnauthorized
			if errors.Is(err, services.ErrStoreUnavailable) {
				code = "INTERNAL_ERROR"
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, utils.CreateErrorResponse(code, "Authentication required"))
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireRoleLevel gates a route on the authenticated identity holding at
// least one role of the given level. Must run after RequireSession.
func (m *Middleware) RequireRoleLevel(minLevel int) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse("NO_SESSION", "Authentication required"))
			return
		}

		ok, err := m.accessService.HasRoleLevel(c.Request.Context(), session.IdentityID, minLevel)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				utils.CreateErrorResponse("INTERNAL_ERROR", "Could not check authorization"))
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				utils.CreateErrorResponse("PERMISSION_DENIED", "Insufficient role level"))
			return
		}

		c.Next()
	}
}

// RequireCapability gates a route on a merged permission capability.
func (m *Middleware) RequireCapability(code string, capability services.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse("NO_SESSION", "Authentication required"))
			return
		}

		allowed, err := m.accessService.Allowed(c.Request.Context(), session.IdentityID, code, capability)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				utils.CreateErrorResponse("INTERNAL_ERROR", "Could not check authorization"))
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden,
				utils.CreateErrorResponse("PERMISSION_DENIED", "Permission denied"))
			return
		}

		c.Next()
	}
}

func (m *Middleware) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.authCfg.CookieName, "", -1, "/", m.authCfg.CookieDomain, m.authCfg.CookieSecure, true)
}

// CurrentSession returns the session RequireSession stashed, nil outside it.
func CurrentSession(c *gin.Context) *models.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
