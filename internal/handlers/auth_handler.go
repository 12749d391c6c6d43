package handlers

import (
	"clinic-auth/internal/config"
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"clinic-auth/utils"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthHandler owns the login, logout and session endpoints plus the
// ForwardAuth validation endpoint the gateway calls for downstream services.
type AuthHandler struct {
	credentialService services.ICredentialService
	twoFactorService  services.ITwoFactorService
	sessionService    services.ISessionService
	permissionService services.IPermissionService
	identityService   services.IIdentityService
	jwtService        *services.JWTService
	authCfg           config.AuthConfig
}

func NewAuthHandler(
	credentialService services.ICredentialService,
	twoFactorService services.ITwoFactorService,
	sessionService services.ISessionService,
	permissionService services.IPermissionService,
	identityService services.IIdentityService,
	jwtService *services.JWTService,
	authCfg config.AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		credentialService: credentialService,
		twoFactorService:  twoFactorService,
		sessionService:    sessionService,
		permissionService: permissionService,
		identityService:   identityService,
		jwtService:        jwtService,
		authCfg:           authCfg,
	}
}

func (a *AuthHandler) RegisterRoutes(router *gin.Engine, requireSession gin.HandlerFunc) {
	authGr := router.Group("/auth")

	// Public routes
	authGr.POST("/login", a.Login)
	authGr.POST("/logout", a.Logout)

	// ForwardAuth endpoint called by the gateway, authenticated by cookie
	authGr.GET("/validate", a.Validate)

	sessionGr := authGr.Group("/session", requireSession)
	sessionGr.GET("", a.GetSession)
	sessionGr.GET("/list", a.ListMySessions)
}

// Login authenticates an identity. When step-up verification is enabled and
// no code accompanies the request, the password check succeeds without a
// session and the client is told which second factor to complete.
func (a *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Invalid login request format: %v", err)
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", "Invalid request format")
		return
	}

	ipAddress := a.getClientIP(c)
	deviceInfo := a.getDeviceInfo(c)

	identity, twoFactorEnabled, err := a.credentialService.Verify(c.Request.Context(), req.Email, req.Password, &ipAddress)
	if err != nil {
		statusCode, errorCode := a.mapLoginError(err)
		c.JSON(statusCode, utils.CreateErrorResponse(errorCode, "Login failed"))
		return
	}

	if twoFactorEnabled {
		if req.OTPCode == "" {
			method, err := a.twoFactorService.Challenge(c.Request.Context(), identity)
			if err != nil {
				statusCode, errorCode := a.mapLoginError(err)
				c.JSON(statusCode, utils.CreateErrorResponse(errorCode, "Could not start verification"))
				return
			}
			c.JSON(http.StatusOK, models.TwoFactorChallengeResponse{
				Success:           false,
				RequiresTwoFactor: true,
				TwoFactorMethod:   method,
			})
			return
		}

		if err := a.twoFactorService.VerifyChallenge(c.Request.Context(), identity.ID, req.OTPCode); err != nil {
			statusCode, errorCode := a.mapLoginError(err)
			c.JSON(statusCode, utils.CreateErrorResponse(errorCode, "Verification failed"))
			return
		}
	}

	rawToken, session, err := a.sessionService.Create(c.Request.Context(), identity, &ipAddress, &deviceInfo)
	if err != nil {
		log.Printf("Failed to create session for identity %s: %v", identity.ID, err)
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	if err := a.identityService.RecordLogin(c.Request.Context(), identity.ID); err != nil {
		log.Printf("Failed to record login time for identity %s: %v", identity.ID, err)
	}

	a.setSessionCookie(c, rawToken, session.ExpiresAt)

	profile, err := a.buildProfile(c, identity, session)
	if err != nil {
		log.Printf("Failed to build login profile for identity %s: %v", identity.ID, err)
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	log.Printf("Successful login for identity %s", identity.ID)
	utils.SendSuccess(c, http.StatusOK, profile)
}

// Logout ends the current session. Always succeeds from the client's view;
// a missing or stale cookie is cleared all the same.
func (a *AuthHandler) Logout(c *gin.Context) {
	rawToken, _ := c.Cookie(a.authCfg.CookieName)

	if err := a.sessionService.Revoke(c.Request.Context(), rawToken); err != nil {
		log.Printf("Failed to revoke session on logout: %v", err)
	}

	a.clearSessionCookie(c)
	utils.SendMessage(c, http.StatusOK, "Logged out")
}

// GetSession returns the full profile of the authenticated identity: who
// they are, their roles, merged permissions and accessible menus.
func (a *AuthHandler) GetSession(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	identity, err := a.identityService.GetIdentity(c.Request.Context(), session.IdentityID)
	if err != nil || identity == nil {
		utils.SendError(c, http.StatusUnauthorized, "INVALID_SESSION", "Authentication required")
		return
	}

	profile, err := a.buildProfile(c, identity, session)
	if err != nil {
		log.Printf("Failed to build session profile for identity %s: %v", identity.ID, err)
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load session")
		return
	}

	utils.SendSuccess(c, http.StatusOK, profile)
}

func (a *AuthHandler) ListMySessions(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	sessions, err := a.sessionService.ListSessions(c.Request.Context(), session.IdentityID, true)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list sessions")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"sessions": sessions, "current_session_id": session.ID})
}

// Validate is the ForwardAuth endpoint. The gateway forwards each request
// here before routing it; on success the response carries identity headers
// plus a short-lived signed assertion downstream services can verify offline.
func (a *AuthHandler) Validate(c *gin.Context) {
	rawToken, err := c.Cookie(a.authCfg.CookieName)
	if err != nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	session, err := a.sessionService.Validate(c.Request.Context(), rawToken)
	if err != nil {
		a.clearSessionCookie(c)
		statusCode, errorCode := a.mapSessionError(err)
		c.JSON(statusCode, utils.CreateErrorResponse(errorCode, "Authentication required"))
		return
	}

	identity, err := a.identityService.GetIdentity(c.Request.Context(), session.IdentityID)
	if err != nil || identity == nil || !identity.IsActive {
		a.clearSessionCookie(c)
		utils.SendError(c, http.StatusUnauthorized, "INVALID_SESSION", "Authentication required")
		return
	}

	roles, err := a.permissionService.RolesOf(c.Request.Context(), identity.ID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not resolve roles")
		return
	}
	roleCodes := make([]string, 0, len(roles))
	for _, role := range roles {
		roleCodes = append(roleCodes, role.Code)
	}

	assertion, err := a.jwtService.GenerateIdentityAssertion(identity.ID, identity.Email, roleCodes)
	if err != nil {
		log.Printf("Failed to mint identity assertion for %s: %v", identity.ID, err)
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not mint assertion")
		return
	}

	c.Header("X-Identity-ID", identity.ID)
	c.Header("X-Identity-Email", identity.Email)
	c.Header("X-Identity-Roles", strings.Join(roleCodes, ","))
	c.Header("X-Identity-Assertion", assertion)
	utils.SendMessage(c, http.StatusOK, "OK")
}

func (a *AuthHandler) buildProfile(c *gin.Context, identity *models.Identity, session *models.Session) (*models.SessionProfileResponse, error) {
	ctx := c.Request.Context()

	roles, err := a.permissionService.RolesOf(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	perms, err := a.permissionService.EffectivePermissions(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	menus, err := a.permissionService.AccessibleMenus(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	return &models.SessionProfileResponse{
		Identity:    identity,
		Roles:       roles,
		Permissions: perms,
		Menus:       menus,
		Session: &models.SessionMetadata{
			LoginAt:        session.LoginAt,
			LastActivityAt: session.LastActivityAt,
			ExpiresAt:      session.ExpiresAt,
			Origin:         session.Origin,
			IdleTimeout:    a.authCfg.IdleTimeout.String(),
		},
	}, nil
}

func (a *AuthHandler) setSessionCookie(c *gin.Context, rawToken string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.authCfg.CookieName, rawToken, maxAge, "/", a.authCfg.CookieDomain, a.authCfg.CookieSecure, true)
}

func (a *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.authCfg.CookieName, "", -1, "/", a.authCfg.CookieDomain, a.authCfg.CookieSecure, true)
}

// getDeviceInfo extracts device information from request
func (a *AuthHandler) getDeviceInfo(c *gin.Context) string {
	userAgent := c.GetHeader("User-Agent")
	if userAgent == "" {
		userAgent = "Unknown Device"
	}
	return userAgent
}

// getClientIP extracts client IP address
func (a *AuthHandler) getClientIP(c *gin.Context) string {
	// Check X-Forwarded-For header first (for load balancers/proxies)
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}

	return c.ClientIP()
}

// mapLoginError maps service layer errors to HTTP responses
func (a *AuthHandler) mapLoginError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, services.ErrCodeMismatch):
		return http.StatusUnauthorized, "INVALID_OTP_CODE"
	case errors.Is(err, services.ErrCodeExpired):
		return http.StatusUnauthorized, "OTP_CODE_EXPIRED"
	case errors.Is(err, services.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case errors.Is(err, services.ErrTwoFactorNotProvisioned):
		return http.StatusConflict, "TWO_FACTOR_NOT_PROVISIONED"
	case errors.Is(err, services.ErrUnsupportedMethod):
		return http.StatusBadRequest, "UNSUPPORTED_METHOD"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (a *AuthHandler) mapSessionError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNoSession):
		return http.StatusUnauthorized, "NO_SESSION"
	case errors.Is(err, services.ErrSessionExpired):
		return http.StatusUnauthorized, "SESSION_EXPIRED"
	case errors.Is(err, services.ErrInvalidSession):
		return http.StatusUnauthorized, "INVALID_SESSION"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
