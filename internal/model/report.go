package model

import (
	"time"
)

const (
	ReportTypeStock      = "stock"
	ReportTypeMouvements = "mouvements"
)

// Report 持久化的报表，内容由调用方决定
type Report struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"type:varchar(32);index;not null" json:"type"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Content   string    `gorm:"type:longtext" json:"content"`
	CreatedBy *int64    `gorm:"index" json:"createdBy,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Report) TableName() string {
	return "report"
}
