package handlers

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/repository"
	"clinic-auth/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IPAllowHandler administers the allow-list that classifies new sessions as
// internal or external. Entries take effect for sessions created after the
// change; existing sessions keep the origin they were born with.
type IPAllowHandler struct {
	ipAllowRepo repository.IPAllowRepository
}

func NewIPAllowHandler(ipAllowRepo repository.IPAllowRepository) *IPAllowHandler {
	return &IPAllowHandler{
		ipAllowRepo: ipAllowRepo,
	}
}

func (h *IPAllowHandler) RegisterRoutes(router *gin.Engine, requireSession, requireAdmin gin.HandlerFunc) {
	group := router.Group("/auth/ip-allowlist", requireSession, requireAdmin)
	{
		group.GET("", h.ListEntries)
		group.POST("", h.CreateEntry)
		group.PUT("/:id", h.UpdateEntry)
		group.DELETE("/:id", h.DeleteEntry)
	}
}

func (h *IPAllowHandler) ListEntries(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	entries, err := h.ipAllowRepo.GetEntries(activeOnly)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve entries")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"entries": entries})
}

func (h *IPAllowHandler) CreateEntry(c *gin.Context) {
	var req models.CreateIPAllowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if !models.ValidIPPattern(req.Pattern) {
		utils.SendError(c, http.StatusBadRequest, "INVALID_PATTERN", "pattern must be an IP, a CIDR block or a wildcard pattern")
		return
	}

	createdBy := req.CreatedBy
	if createdBy == nil {
		if session := CurrentSession(c); session != nil {
			createdBy = &session.IdentityID
		}
	}

	entry := &models.IPAllowEntry{
		Pattern:     req.Pattern,
		Description: req.Description,
		IsActive:    true,
		CreatedBy:   createdBy,
	}

	if err := h.ipAllowRepo.CreateEntry(entry); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create entry")
		return
	}

	utils.SendSuccess(c, http.StatusCreated, entry)
}

func (h *IPAllowHandler) UpdateEntry(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid entry ID")
		return
	}

	var req models.UpdateIPAllowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if !models.ValidIPPattern(req.Pattern) {
		utils.SendError(c, http.StatusBadRequest, "INVALID_PATTERN", "pattern must be an IP, a CIDR block or a wildcard pattern")
		return
	}

	entry, err := h.ipAllowRepo.GetEntryByID(id)
	if err != nil || entry == nil {
		utils.SendError(c, http.StatusNotFound, "NOT_FOUND", "entry not found")
		return
	}

	entry.Pattern = req.Pattern
	entry.Description = req.Description
	entry.IsActive = req.IsActive

	if err := h.ipAllowRepo.UpdateEntry(entry); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update entry")
		return
	}

	utils.SendSuccess(c, http.StatusOK, entry)
}

func (h *IPAllowHandler) DeleteEntry(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid entry ID")
		return
	}

	if err := h.ipAllowRepo.DeleteEntry(id); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete entry")
		return
	}

	utils.SendMessage(c, http.StatusOK, "entry deleted")
}
