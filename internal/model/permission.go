package model

const (
	PermBanksRead      = "banks:read"
	PermBanksWrite     = "banks:write"
	PermLocationsRead  = "locations:read"
	PermLocationsWrite = "locations:write"
	PermCardTypesRead  = "cardtypes:read"
	PermCardTypesWrite = "cardtypes:write"
	PermStocksRead     = "stocks:read"
	PermStocksWrite    = "stocks:write"
	PermMovementsRead  = "movements:read"
	PermMovementsWrite = "movements:write"
	PermUsersManage    = "users:manage"
	PermAuditRead      = "audit:read"
	PermSettingsManage = "settings:manage"
	PermReportsRead    = "reports:read"
	PermReportsWrite   = "reports:write"
	PermImportWrite    = "import:write"
)

// DefaultPermissions 启动时写入的内置权限
var DefaultPermissions = []Permission{
	{Name: PermBanksRead, Description: "查看银行"},
	{Name: PermBanksWrite, Description: "维护银行"},
	{Name: PermLocationsRead, Description: "查看地点"},
	{Name: PermLocationsWrite, Description: "维护地点"},
	{Name: PermCardTypesRead, Description: "查看卡种"},
	{Name: PermCardTypesWrite, Description: "维护卡种"},
	{Name: PermStocksRead, Description: "查看库存"},
	{Name: PermStocksWrite, Description: "调整库存"},
	{Name: PermMovementsRead, Description: "查看库存变动"},
	{Name: PermMovementsWrite, Description: "登记库存变动"},
	{Name: PermUsersManage, Description: "管理用户和角色"},
	{Name: PermAuditRead, Description: "查看审计日志"},
	{Name: PermSettingsManage, Description: "管理系统配置"},
	{Name: PermReportsRead, Description: "查看和导出报表"},
	{Name: PermReportsWrite, Description: "维护和发送报表"},
	{Name: PermImportWrite, Description: "批量导入"},
}
