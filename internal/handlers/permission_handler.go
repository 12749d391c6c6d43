package handlers

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"clinic-auth/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	roleService *services.RoleService
}

func NewPermissionHandler(roleService *services.RoleService) *PermissionHandler {
	return &PermissionHandler{
		roleService: roleService,
	}
}

func (p *PermissionHandler) RegisterRoutes(router *gin.Engine, requireSession, requireAdmin gin.HandlerFunc) {
	group := router.Group("/auth/permissions", requireSession)
	{
		group.GET("", p.GetAllPermissions)
		group.GET("/:id", p.GetPermission)
	}

	adminGroup := router.Group("/auth/permissions", requireSession, requireAdmin)
	{
		adminGroup.POST("", p.CreatePermission)
		adminGroup.DELETE("/:id", p.DeletePermission)
	}
}

func (p *PermissionHandler) GetAllPermissions(c *gin.Context) {
	category := c.Query("category") // Optional category filter
	limit, offset := utils.ParsePaginationParams(c)

	permissions, err := p.roleService.GetAllPermissions(c.Request.Context(), category, limit, offset)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve permissions")
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedPermissionsResponse{
		Permissions: permissions,
		Total:       len(permissions),
		Limit:       limit,
		Offset:      offset,
	})
}

func (p *PermissionHandler) GetPermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid permission ID")
		return
	}

	permission, err := p.roleService.GetPermission(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "NOT_FOUND", "permission not found")
		return
	}

	utils.SendSuccess(c, http.StatusOK, permission)
}

func (p *PermissionHandler) CreatePermission(c *gin.Context) {
	var req models.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	permission, err := p.roleService.CreatePermission(c.Request.Context(), &models.Permission{
		Code:        req.Code,
		Category:    req.Category,
		CanCreate:   req.CanCreate,
		CanRead:     req.CanRead,
		CanUpdate:   req.CanUpdate,
		CanDelete:   req.CanDelete,
		CanExport:   req.CanExport,
		CanBulkEdit: req.CanBulkEdit,
	})
	if err != nil {
		utils.SendError(c, http.StatusConflict, "PERMISSION_EXISTS", err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusCreated, permission)
}

func (p *PermissionHandler) DeletePermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid permission ID")
		return
	}

	if err := p.roleService.DeletePermission(c.Request.Context(), id); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete permission")
		return
	}

	utils.SendMessage(c, http.StatusOK, "permission deleted successfully")
}
