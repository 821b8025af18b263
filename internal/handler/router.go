package handler

import (
	"cardstock/internal/config"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, mailer mail.Sender) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 16 << 20

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, mailer)
	perm := RequirePermission

	api := r.Group("/api/v1")
	api.POST("/auth/login", h.Login)

	authed := api.Group("", AuthMiddleware(h.authService))
	{
		authed.POST("/auth/logout", h.Logout)
		authed.GET("/auth/me", h.Me)

		authed.GET("/notifications", h.ListNotifications)
		authed.PATCH("/notifications/:id/read", h.MarkNotificationRead)

		// 银行
		authed.GET("/banks", perm(model.PermBanksRead), h.ListBanks)
		authed.GET("/banks/:id", perm(model.PermBanksRead), h.GetBank)
		authed.POST("/banks", perm(model.PermBanksWrite), h.CreateBank)
		authed.PATCH("/banks/:id", perm(model.PermBanksWrite), h.UpdateBank)
		authed.DELETE("/banks/:id", perm(model.PermBanksWrite), h.DeleteBank)

		// 存放地点
		authed.GET("/locations", perm(model.PermLocationsRead), h.ListLocations)
		authed.GET("/locations/:id", perm(model.PermLocationsRead), h.GetLocation)
		authed.POST("/locations", perm(model.PermLocationsWrite), h.CreateLocation)
		authed.PATCH("/locations/:id", perm(model.PermLocationsWrite), h.UpdateLocation)
		authed.DELETE("/locations/:id", perm(model.PermLocationsWrite), h.DeleteLocation)

		// 卡种
		authed.GET("/card-types", perm(model.PermCardTypesRead), h.ListCardTypes)
		authed.GET("/card-types/:id", perm(model.PermCardTypesRead), h.GetCardType)
		authed.POST("/card-types", perm(model.PermCardTypesWrite), h.CreateCardType)
		authed.PATCH("/card-types/:id", perm(model.PermCardTypesWrite), h.UpdateCardType)
		authed.DELETE("/card-types/:id", perm(model.PermCardTypesWrite), h.DeleteCardType)

		// 库存
		authed.GET("/stocks", perm(model.PermStocksRead), h.ListStocks)
		authed.GET("/stocks/:id", perm(model.PermStocksRead), h.GetStock)
		authed.POST("/stocks", perm(model.PermStocksWrite), h.CreateStock)
		authed.PATCH("/stocks/:id", perm(model.PermStocksWrite), h.UpdateStock)
		authed.DELETE("/stocks/:id", perm(model.PermStocksWrite), h.DeleteStock)

		// 库存变动
		authed.GET("/movements", perm(model.PermMovementsRead), h.ListMovements)
		authed.GET("/movements/:id", perm(model.PermMovementsRead), h.GetMovement)
		authed.POST("/movements", perm(model.PermMovementsWrite), h.CreateMovement)
		authed.PATCH("/movements/:id", perm(model.PermMovementsWrite), h.UpdateMovement)
		authed.DELETE("/movements/:id", perm(model.PermMovementsWrite), h.DeleteMovement)

		// 用户、角色、权限
		users := authed.Group("", perm(model.PermUsersManage))
		{
			users.GET("/users", h.ListUsers)
			users.GET("/users/:id", h.GetUser)
			users.POST("/users", h.CreateUser)
			users.PATCH("/users/:id", h.UpdateUser)
			users.DELETE("/users/:id", h.DeleteUser)

			users.GET("/roles", h.ListRoles)
			users.GET("/roles/:id", h.GetRole)
			users.POST("/roles", h.CreateRole)
			users.PATCH("/roles/:id", h.UpdateRole)
			users.DELETE("/roles/:id", h.DeleteRole)

			users.GET("/permissions", h.ListPermissions)
			users.POST("/permissions", h.CreatePermission)
			users.DELETE("/permissions/:id", h.DeletePermission)
		}

		authed.GET("/audit-logs", perm(model.PermAuditRead), h.ListAuditLogs)

		// 系统设置与通知设置
		settings := authed.Group("", perm(model.PermSettingsManage))
		{
			settings.GET("/settings", h.ListSettings)
			settings.POST("/settings", h.CreateSetting)
			settings.PATCH("/settings", h.BatchUpdateSettings)
			settings.GET("/settings/smtp", h.GetSMTP)
			settings.POST("/settings/smtp/test", h.TestSMTP)
			settings.GET("/settings/:key", h.GetSetting)
			settings.PATCH("/settings/:key", h.UpdateSetting)
			settings.DELETE("/settings/:key", h.DeleteSetting)

			settings.GET("/notification-settings", h.ListNotificationSettings)
			settings.POST("/notification-settings", h.CreateNotificationSetting)
			settings.PATCH("/notification-settings/:id", h.UpdateNotificationSetting)
			settings.DELETE("/notification-settings/:id", h.DeleteNotificationSetting)
		}

		// 报表
		authed.GET("/reports", perm(model.PermReportsRead), h.ListReports)
		authed.GET("/reports/dynamic/:type", perm(model.PermReportsRead), h.DynamicReport)
		authed.GET("/reports/:id", perm(model.PermReportsRead), h.GetReport)
		authed.POST("/reports", perm(model.PermReportsWrite), h.CreateReport)
		authed.POST("/reports/email", perm(model.PermReportsWrite), h.EmailReport)
		authed.PATCH("/reports/:id", perm(model.PermReportsWrite), h.UpdateReport)
		authed.DELETE("/reports/:id", perm(model.PermReportsWrite), h.DeleteReport)

		// 导入导出
		authed.POST("/import/:entity", perm(model.PermImportWrite), h.Import)
		authed.GET("/import/templates/:entity", perm(model.PermImportWrite), h.ImportTemplate)
		authed.GET("/export/:entity", perm(model.PermReportsRead), h.Export)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
