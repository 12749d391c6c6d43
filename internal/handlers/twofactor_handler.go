package handlers

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"clinic-auth/utils"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TwoFactorHandler exposes second-factor enrollment for the authenticated
// identity. Challenge verification during login lives on the auth handler.
type TwoFactorHandler struct {
	twoFactorService services.ITwoFactorService
	identityService  services.IIdentityService
}

func NewTwoFactorHandler(twoFactorService services.ITwoFactorService, identityService services.IIdentityService) *TwoFactorHandler {
	return &TwoFactorHandler{
		twoFactorService: twoFactorService,
		identityService:  identityService,
	}
}

func (t *TwoFactorHandler) RegisterRoutes(router *gin.Engine, requireSession gin.HandlerFunc) {
	group := router.Group("/auth/2fa", requireSession)
	{
		group.GET("/status", t.Status)
		group.POST("/setup", t.BeginSetup)
		group.POST("/setup/verify", t.VerifySetup)
		group.DELETE("", t.Disable)
	}
}

func (t *TwoFactorHandler) Status(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	cfg, err := t.twoFactorService.Status(c.Request.Context(), session.IdentityID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load 2FA status")
		return
	}
	if cfg == nil {
		utils.SendSuccess(c, http.StatusOK, gin.H{"is_enabled": false})
		return
	}

	utils.SendSuccess(c, http.StatusOK, cfg)
}

// BeginSetup starts enrollment for the requested method. TOTP answers with
// the provisioning secret and otpauth URI and stays pending until the first
// code verifies; SMS just needs a phone number on file.
func (t *TwoFactorHandler) BeginSetup(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	var req models.TwoFactorSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	identity, err := t.identityService.GetIdentity(c.Request.Context(), session.IdentityID)
	if err != nil || identity == nil {
		utils.SendError(c, http.StatusUnauthorized, "INVALID_SESSION", "Authentication required")
		return
	}

	switch req.Method {
	case models.TwoFactorTOTP:
		provisioning, err := t.twoFactorService.BeginTOTPSetup(c.Request.Context(), identity)
		if err != nil {
			log.Printf("TOTP setup failed for identity %s: %v", identity.ID, err)
			utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not start setup")
			return
		}
		utils.SendSuccess(c, http.StatusOK, provisioning)
	case models.TwoFactorSMS:
		if err := t.twoFactorService.BeginSMSSetup(c.Request.Context(), identity); err != nil {
			if errors.Is(err, services.ErrPhoneRequired) {
				utils.SendError(c, http.StatusBadRequest, "PHONE_REQUIRED", "a phone number is required for SMS verification")
				return
			}
			utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not start setup")
			return
		}
		utils.SendMessage(c, http.StatusOK, "SMS verification enabled")
	default:
		utils.SendError(c, http.StatusBadRequest, "UNSUPPORTED_METHOD", "unknown two-factor method")
	}
}

// VerifySetup confirms a pending TOTP enrollment with a first valid code.
func (t *TwoFactorHandler) VerifySetup(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	var req models.TwoFactorVerifySetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if err := t.twoFactorService.VerifyTOTPSetup(c.Request.Context(), session.IdentityID, req.Code); err != nil {
		switch {
		case errors.Is(err, services.ErrCodeMismatch):
			utils.SendError(c, http.StatusUnauthorized, "INVALID_OTP_CODE", "the code did not verify")
		case errors.Is(err, services.ErrTwoFactorNotProvisioned):
			utils.SendError(c, http.StatusConflict, "TWO_FACTOR_NOT_PROVISIONED", "start setup first")
		default:
			utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not verify setup")
		}
		return
	}

	utils.SendMessage(c, http.StatusOK, "two-factor verification enabled")
}

func (t *TwoFactorHandler) Disable(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	if err := t.twoFactorService.Disable(c.Request.Context(), session.IdentityID); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not disable two-factor verification")
		return
	}

	utils.SendMessage(c, http.StatusOK, "two-factor verification disabled")
}
