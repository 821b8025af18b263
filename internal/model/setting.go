package model

import (
	"time"
)

const (
	NotificationTypeSettings   = "SETTINGS"
	NotificationTypeStockAlert = "STOCK_ALERT"
	NotificationTypeRecipients = "NOTIFICATION_SETTINGS"
)

const (
	SettingNotificationEmails = "notification_recipients"
	SettingSMTPHost           = "smtp_host"
	SettingSMTPPort           = "smtp_port"
	SettingSMTPUser           = "smtp_user"
	SettingSMTPPassword       = "smtp_password"
	SettingSMTPFrom           = "smtp_from"
)

// Setting 动态键值配置；key 在 MySQL 中是保留字，列名用 setting_key
type Setting struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Key       string    `gorm:"column:setting_key;type:varchar(128);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Setting) TableName() string {
	return "setting"
}

// Notification 站内通知
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"type:varchar(32);index;not null" json:"type"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notification"
}

// NotificationSetting 告警/报表的邮件接收人
type NotificationSetting struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	StockAlerts     bool      `gorm:"not null;default:true" json:"stockAlerts"`
	MovementAlerts  bool      `gorm:"not null;default:false" json:"movementAlerts"`
	ReportFrequency string    `gorm:"type:varchar(16);not null;default:none" json:"reportFrequency"` // none / daily / weekly / monthly
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (NotificationSetting) TableName() string {
	return "notification_setting"
}
