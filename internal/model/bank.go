package model

import (
	"time"
)

// Bank 发卡银行
type Bank struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string     `gorm:"type:varchar(128);not null" json:"name"`
	Address   string     `gorm:"type:varchar(256)" json:"address"`
	BankCode  string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"bankCode"` // 全局唯一
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	Locations []Location `gorm:"foreignKey:BankID" json:"locations,omitempty"`
	CardTypes []CardType `gorm:"foreignKey:BankID" json:"cardTypes,omitempty"`
}

func (Bank) TableName() string {
	return "bank"
}

// Location 存放卡片的物理地点（金库、网点等）
type Location struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	Address       string    `gorm:"type:varchar(256)" json:"address"`
	BankID        int64     `gorm:"index;not null" json:"bankId"`
	MaxCapacity   int64     `gorm:"not null;default:0" json:"maxCapacity"` // 0 表示不限
	SecurityLevel string    `gorm:"type:varchar(32)" json:"securityLevel"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Bank          *Bank     `gorm:"foreignKey:BankID" json:"bank,omitempty"`
}

func (Location) TableName() string {
	return "location"
}

// CardType 卡片类型，Type -> SubType -> SubSubType 构成子类型链
type CardType struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"type:varchar(128);not null" json:"name"`
	BankID         int64     `gorm:"index;not null" json:"bankId"`
	Type           string    `gorm:"type:varchar(64)" json:"type"`
	SubType        string    `gorm:"type:varchar(64)" json:"subType"`
	SubSubType     string    `gorm:"type:varchar(64)" json:"subSubType"`
	AlertThreshold int64     `gorm:"not null;default:0" json:"alertThreshold"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Bank           *Bank     `gorm:"foreignKey:BankID" json:"bank,omitempty"`
}

func (CardType) TableName() string {
	return "card_type"
}
