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

// IdentityHandler covers staff account administration plus the password
// change endpoint identities use on themselves.
type IdentityHandler struct {
	identityService services.IIdentityService
	sessionService  services.ISessionService
}

func NewIdentityHandler(identityService services.IIdentityService, sessionService services.ISessionService) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
		sessionService:  sessionService,
	}
}

func (h *IdentityHandler) RegisterRoutes(router *gin.Engine, requireSession, requireAdmin gin.HandlerFunc) {
	selfGr := router.Group("/auth/identities", requireSession)
	selfGr.POST("/me/password", h.ChangeMyPassword)

	adminGr := router.Group("/auth/identities", requireSession, requireAdmin)
	{
		adminGr.POST("", h.CreateIdentity)
		adminGr.GET("", h.ListIdentities)
		adminGr.GET("/:id", h.GetIdentity)
		adminGr.GET("/:id/sessions", h.ListIdentitySessions)
		adminGr.POST("/:id/deactivate", h.DeactivateIdentity)
		adminGr.POST("/:id/reactivate", h.ReactivateIdentity)
	}
}

type CreateIdentityRequest struct {
	Email        string  `json:"email" binding:"required"`
	Password     string  `json:"password" binding:"required"`
	PhoneNumber  string  `json:"phone_number"`
	DepartmentID *string `json:"department_id"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *IdentityHandler) CreateIdentity(c *gin.Context) {
	var req CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	identity, err := h.identityService.RegisterIdentity(c.Request.Context(), req.Email, req.Password, req.PhoneNumber, req.DepartmentID)
	if err != nil {
		utils.SendError(c, http.StatusConflict, "IDENTITY_EXISTS", err.Error())
		return
	}

	log.Printf("Created identity %s", identity.ID)
	utils.SendSuccess(c, http.StatusCreated, identity)
}

func (h *IdentityHandler) ListIdentities(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)

	identities, err := h.identityService.ListIdentities(c.Request.Context(), limit, offset)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve identities")
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedIdentitiesResponse{
		Identities: identities,
		Total:      len(identities),
		Limit:      limit,
		Offset:     offset,
	})
}

func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	identity, err := h.identityService.GetIdentity(c.Request.Context(), c.Param("id"))
	if err != nil || identity == nil {
		utils.SendError(c, http.StatusNotFound, "NOT_FOUND", "identity not found")
		return
	}

	utils.SendSuccess(c, http.StatusOK, identity)
}

func (h *IdentityHandler) ListIdentitySessions(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	sessions, err := h.sessionService.ListSessions(c.Request.Context(), c.Param("id"), activeOnly)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve sessions")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"sessions": sessions})
}

// DeactivateIdentity disables the account and revokes its sessions in one
// move, so revocation cannot be forgotten.
func (h *IdentityHandler) DeactivateIdentity(c *gin.Context) {
	if err := h.identityService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to deactivate identity")
		return
	}

	utils.SendMessage(c, http.StatusOK, "identity deactivated and sessions revoked")
}

func (h *IdentityHandler) ReactivateIdentity(c *gin.Context) {
	if err := h.identityService.Reactivate(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to reactivate identity")
		return
	}

	utils.SendMessage(c, http.StatusOK, "identity reactivated")
}

func (h *IdentityHandler) ChangeMyPassword(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		utils.SendError(c, http.StatusUnauthorized, "NO_SESSION", "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if err := h.identityService.ChangePassword(c.Request.Context(), session.IdentityID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.SendError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is incorrect")
			return
		}
		utils.SendError(c, http.StatusBadRequest, "PASSWORD_CHANGE_FAILED", err.Error())
		return
	}

	utils.SendMessage(c, http.StatusOK, "password changed")
}
