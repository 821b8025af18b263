package model

import (
	"time"
)

const (
	AuditTypeUserLogin       = "USER_LOGIN"
	AuditTypeUserLogout      = "USER_LOGOUT"
	AuditTypeMovementCreated = "MOVEMENT_CREATED"
	AuditTypeMovementDeleted = "MOVEMENT_DELETED"
	AuditTypeStockAdjusted   = "STOCK_ADJUSTED"
	AuditTypeStockDeleted    = "STOCK_DELETED"
	AuditTypeSettingsUpdated = "SETTINGS_UPDATED"
	AuditTypeDataImported    = "DATA_IMPORTED"
	AuditTypeReportSent      = "REPORT_SENT"
)

// AuditLog 审计日志，只追加，不修改，不删除
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64    `gorm:"index" json:"userId,omitempty"`
	Action    string    `gorm:"type:varchar(64);not null" json:"action"`
	Resource  string    `gorm:"type:varchar(64);not null" json:"resource"`
	Details   string    `gorm:"type:text" json:"details"`
	IP        string    `gorm:"type:varchar(64)" json:"ip"`
	Type      string    `gorm:"type:varchar(32);index;not null" json:"type"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
