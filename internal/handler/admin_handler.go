package handler

import (
	"strconv"

	"cardstock/internal/repository"
	"cardstock/internal/service"
	"cardstock/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 认证
// ============================================================

// Login POST /api/v1/auth/login
// 同一用户同一 User-Agent 复用已有会话
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), &req, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), principal(c), c.ClientIP()); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// Me 当前登录用户（含角色和权限）
func (h *Handler) Me(c *gin.Context) {
	response.Success(c, principal(c).User)
}

// ============================================================
// 用户
// ============================================================

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, user)
}

// UpdateUser 修改密码或停用账号会使该用户全部会话失效
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateUserInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if p := principal(c); p != nil && p.User.ID == id {
		response.ParamError(c, "不能删除当前登录的用户")
		return
	}
	if err := h.userService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 角色和权限
// ============================================================

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, roles)
}

func (h *Handler) GetRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	role, err := h.roleService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, role)
}

func (h *Handler) CreateRole(c *gin.Context) {
	var req service.CreateRoleInput
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, role)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateRoleInput
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, role)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.roleService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) ListPermissions(c *gin.Context) {
	permissions, err := h.roleService.ListPermissions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, permissions)
}

func (h *Handler) CreatePermission(c *gin.Context) {
	var req service.CreatePermissionInput
	if !bindJSON(c, &req) {
		return
	}
	permission, err := h.roleService.CreatePermission(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, permission)
}

func (h *Handler) DeletePermission(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.roleService.DeletePermission(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ============================================================
// 审计日志
// ============================================================

// ListAuditLogs GET /api/v1/audit-logs?userId=1&type=USER_LOGIN&limit=100
func (h *Handler) ListAuditLogs(c *gin.Context) {
	userID, ok := queryID(c, "userId")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		response.ParamError(c, "limit 参数错误")
		return
	}
	logs, err := h.auditService.List(c.Request.Context(), repository.AuditFilter{UserID: userID, Type: c.Query("type"), Limit: limit})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, logs)
}

// ============================================================
// 系统设置
// ============================================================

func (h *Handler) ListSettings(c *gin.Context) {
	settings, err := h.settingService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

func (h *Handler) GetSetting(c *gin.Context) {
	setting, err := h.settingService.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, setting)
}

func (h *Handler) CreateSetting(c *gin.Context) {
	var req service.CreateSettingInput
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.settingService.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, setting)
}

// BatchUpdateSettings PATCH /api/v1/settings
// body: {"smtp_host": "...", "smtp_port": 587}，不存在的 key 会被创建
func (h *Handler) BatchUpdateSettings(c *gin.Context) {
	var req map[string]interface{}
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.settingService.Batch(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

// UpdateSetting PATCH /api/v1/settings/:key  body: {"value": ...}
func (h *Handler) UpdateSetting(c *gin.Context) {
	var req map[string]interface{}
	if !bindJSON(c, &req) {
		return
	}
	value, ok := req["value"]
	if !ok {
		fail(c, service.NewValidationError("value", "不能为空"))
		return
	}
	setting, err := h.settingService.Update(c.Request.Context(), actor(c), c.Param("key"), value)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, setting)
}

func (h *Handler) DeleteSetting(c *gin.Context) {
	if err := h.settingService.Delete(c.Request.Context(), c.Param("key")); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// GetSMTP 当前生效的 SMTP 配置，不返回密码
func (h *Handler) GetSMTP(c *gin.Context) {
	view, err := h.settingService.SMTPView(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) TestSMTP(c *gin.Context) {
	var req service.SMTPTestInput
	if !bindJSON(c, &req) {
		return
	}
	if err := h.settingService.TestSMTP(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "测试邮件已发送"})
}

// ============================================================
// 通知
// ============================================================

func (h *Handler) ListNotificationSettings(c *gin.Context) {
	settings, err := h.notificationService.ListSettings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

func (h *Handler) CreateNotificationSetting(c *gin.Context) {
	var req service.CreateNotificationSettingInput
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.notificationService.CreateSetting(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, setting)
}

func (h *Handler) UpdateNotificationSetting(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateNotificationSettingInput
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.notificationService.UpdateSetting(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, setting)
}

func (h *Handler) DeleteNotificationSetting(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.notificationService.DeleteSetting(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}

// ListNotifications GET /api/v1/notifications?unread=true
func (h *Handler) ListNotifications(c *gin.Context) {
	notifications, err := h.notificationService.List(c.Request.Context(), queryBool(c, "unread"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, notifications)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.NoContent(c)
}
