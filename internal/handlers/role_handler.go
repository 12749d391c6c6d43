package handlers

import (
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"clinic-auth/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService *services.RoleService
}

func NewRoleHandler(roleService *services.RoleService) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
	}
}

func (r *RoleHandler) RegisterRoutes(router *gin.Engine, requireSession, requireAdmin gin.HandlerFunc) {
	group := router.Group("/auth/roles", requireSession)
	{
		group.GET("", r.GetAllRoles)
		group.GET("/:id", r.GetRole)
		group.GET("/:id/permissions", r.GetRolePermissions)
		group.GET("/:id/menus", r.GetRoleMenus)
	}

	adminGroup := router.Group("/auth/roles", requireSession, requireAdmin)
	{
		adminGroup.POST("", r.CreateRole)
		adminGroup.PUT("/:id", r.UpdateRole)
		adminGroup.DELETE("/:id", r.DeleteRole)
		adminGroup.POST("/:id/permissions", r.GrantPermission)
		adminGroup.DELETE("/:id/permissions/:permission_id", r.RevokePermission)
		adminGroup.POST("/:id/assignments", r.AssignRole)
		adminGroup.DELETE("/:id/assignments/:identity_id", r.RemoveRole)
		adminGroup.PUT("/:id/menus", r.SetRoleMenu)
	}

	// Assignment listing hangs off the identity, not the role.
	router.GET("/auth/identities/:id/roles", requireSession, requireAdmin, r.GetIdentityAssignments)
}

func (r *RoleHandler) GetAllRoles(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)

	roles, err := r.roleService.GetAllRoles(c.Request.Context(), limit, offset)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve roles")
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedRolesResponse{
		Roles:  roles,
		Total:  len(roles),
		Limit:  limit,
		Offset: offset,
	})
}

func (r *RoleHandler) GetRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	role, err := r.roleService.GetRole(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "NOT_FOUND", "role not found")
		return
	}

	utils.SendSuccess(c, http.StatusOK, role)
}

func (r *RoleHandler) CreateRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	role, err := r.roleService.CreateRole(c.Request.Context(), req.Code, req.DisplayName, req.Level)
	if err != nil {
		utils.SendError(c, http.StatusConflict, "ROLE_EXISTS", err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusCreated, role)
}

func (r *RoleHandler) UpdateRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	role := &models.Role{
		ID:          id,
		DisplayName: req.DisplayName,
		Level:       req.Level,
	}

	if err := r.roleService.UpdateRole(c.Request.Context(), role); err != nil {
		if errors.Is(err, services.ErrSystemRole) {
			utils.SendError(c, http.StatusForbidden, "SYSTEM_ROLE", "system roles cannot be modified")
			return
		}
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update role")
		return
	}

	utils.SendSuccess(c, http.StatusOK, role)
}

func (r *RoleHandler) DeleteRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	if err := r.roleService.DeleteRole(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrSystemRole) {
			utils.SendError(c, http.StatusForbidden, "SYSTEM_ROLE", "system roles cannot be deleted")
			return
		}
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete role")
		return
	}

	utils.SendMessage(c, http.StatusOK, "role deleted successfully")
}

func (r *RoleHandler) GetRolePermissions(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	permissions, err := r.roleService.GetRolePermissions(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve role permissions")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"permissions": permissions})
}

func (r *RoleHandler) GrantPermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	var req models.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if err := r.roleService.GrantPermissionToRole(c.Request.Context(), id, req.PermissionID, req.DataScope); err != nil {
		utils.SendError(c, http.StatusBadRequest, "GRANT_FAILED", err.Error())
		return
	}

	utils.SendMessage(c, http.StatusOK, "permission granted")
}

func (r *RoleHandler) RevokePermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	permissionID, err := utils.ParseIDParam(c, "permission_id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid permission ID")
		return
	}

	if err := r.roleService.RevokePermissionFromRole(c.Request.Context(), id, permissionID); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to revoke permission")
		return
	}

	utils.SendMessage(c, http.StatusOK, "permission revoked")
}

func (r *RoleHandler) AssignRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	var req models.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	assignedBy := req.AssignedBy
	if assignedBy == nil {
		if session := CurrentSession(c); session != nil {
			assignedBy = &session.IdentityID
		}
	}

	if err := r.roleService.AssignRoleToIdentity(c.Request.Context(), req.IdentityID, id, assignedBy, req.IsPrimary); err != nil {
		utils.SendError(c, http.StatusBadRequest, "ASSIGN_FAILED", err.Error())
		return
	}

	utils.SendMessage(c, http.StatusOK, "role assigned")
}

func (r *RoleHandler) RemoveRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	identityID := c.Param("identity_id")
	if identityID == "" {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "identity ID is required")
		return
	}

	if err := r.roleService.RemoveRoleFromIdentity(c.Request.Context(), identityID, id); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to remove role")
		return
	}

	utils.SendMessage(c, http.StatusOK, "role removed")
}

func (r *RoleHandler) GetRoleMenus(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	menus, err := r.roleService.GetRoleMenus(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve role menus")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"menus": menus})
}

func (r *RoleHandler) SetRoleMenu(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "invalid role ID")
		return
	}

	var req models.SetRoleMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "INVALID_REQUEST_FORMAT", err.Error())
		return
	}

	if err := r.roleService.SetRoleMenu(c.Request.Context(), id, req.MenuCode, req.Accessible); err != nil {
		utils.SendError(c, http.StatusBadRequest, "MENU_UPDATE_FAILED", err.Error())
		return
	}

	utils.SendMessage(c, http.StatusOK, "menu updated")
}

func (r *RoleHandler) GetIdentityAssignments(c *gin.Context) {
	identityID := c.Param("id")
	if identityID == "" {
		utils.SendError(c, http.StatusBadRequest, "INVALID_ID", "identity ID is required")
		return
	}

	assignments, err := r.roleService.GetIdentityAssignments(c.Request.Context(), identityID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve role assignments")
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"assignments": assignments})
}
