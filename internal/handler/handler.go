package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/service"
	"cardstock/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService         *service.AuthService
	bankService         *service.BankService
	locationService     *service.LocationService
	cardTypeService     *service.CardTypeService
	stockService        *service.StockService
	movementService     *service.MovementService
	userService         *service.UserService
	roleService         *service.RoleService
	auditService        *service.AuditService
	settingService      *service.SettingService
	notificationService *service.NotificationService
	reportService       *service.ReportService
	importService       *service.ImportService
	exportService       *service.ExportService
}

// NewHandler 创建处理器实例；rdb 为 nil 时不使用会话缓存和库存锁
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, mailer mail.Sender) *Handler {
	banks := service.NewBankService(db)
	locations := service.NewLocationService(db)
	cardTypes := service.NewCardTypeService(db)
	stocks := service.NewStockService(db, rdb, cfg)
	settings := service.NewSettingService(db, cfg, mailer)
	notifications := service.NewNotificationService(db)

	return &Handler{
		authService:         service.NewAuthService(db, rdb, cfg),
		bankService:         banks,
		locationService:     locations,
		cardTypeService:     cardTypes,
		stockService:        stocks,
		movementService:     service.NewMovementService(db, rdb, cfg),
		userService:         service.NewUserService(db, rdb, cfg),
		roleService:         service.NewRoleService(db),
		auditService:        service.NewAuditService(db),
		settingService:      settings,
		notificationService: notifications,
		reportService:       service.NewReportService(db, mailer, settings, notifications),
		importService:       service.NewImportService(db, banks, locations, cardTypes, stocks),
		exportService:       service.NewExportService(db),
	}
}

// fail 把服务层错误映射为统一响应
func fail(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		notFoundErr   *service.NotFoundError
		externalErr   *service.ExternalServiceError
	)

	switch {
	case errors.As(err, &validationErr):
		response.ValidationError(c, "参数校验失败", validationErr.Fields)
	case errors.As(err, &conflictErr):
		response.Conflict(c, conflictErr.Error())
	case errors.As(err, &notFoundErr):
		response.NotFound(c, notFoundErr.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.As(err, &externalErr):
		logger.LogError("handler", c.FullPath(), "外部服务调用失败", externalErr.Service, err)
		response.ServerError(c, externalErr.Service+" 服务暂时不可用")
	default:
		logger.LogError("handler", c.FullPath(), "请求处理失败", c.Request.Method, err)
		response.ServerError(c, "服务器内部错误")
	}
}

// bindJSON 请求体无法解析时返回 400，字段校验交给服务层
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.ValidationError(c, "请求体格式错误", []service.FieldError{{Field: "body", Message: err.Error()}})
		return false
	}
	return true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "id 参数错误")
		return 0, false
	}
	return id, true
}

// queryID 可选的 id 查询参数，未给时为 0
func queryID(c *gin.Context, name string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

// queryTime 接受 RFC3339 或 2006-01-02
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	response.ParamError(c, name+" 时间格式错误")
	return nil, false
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return b
}

// actor 当前请求的操作者，用于审计日志
func actor(c *gin.Context) service.Actor {
	if p := principal(c); p != nil {
		return service.ActorOf(p.User.ID, c.ClientIP())
	}
	return service.Actor{IP: c.ClientIP()}
}
