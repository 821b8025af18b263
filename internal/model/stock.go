package model

import (
	"time"
)

const (
	MovementTypeIn       = "in"       // 入库
	MovementTypeOut      = "out"      // 出库
	MovementTypeTransfer = "transfer" // 调拨：源地点出、目标地点入
)

// Stock 某地点某卡种的当前库存
//
// 库存是独立存储的计数器，每次写 Movement 时在同一事务内更新，
// 不从流水重新计算
type Stock struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LocationID     int64     `gorm:"uniqueIndex:uk_stock_location_card;not null" json:"locationId"`
	CardTypeID     int64     `gorm:"uniqueIndex:uk_stock_location_card;index;not null" json:"cardTypeId"`
	Quantity       int64     `gorm:"not null;default:0" json:"quantity"`
	AlertThreshold int64     `gorm:"not null;default:0" json:"alertThreshold"`
	LastUpdate     time.Time `gorm:"autoUpdateTime" json:"lastUpdate"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	Location       *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	CardType       *CardType `gorm:"foreignKey:CardTypeID" json:"cardType,omitempty"`
}

func (Stock) TableName() string {
	return "stock"
}

// IsBelowThreshold 数量小于等于预警阈值时需要告警（阈值为0表示不告警）
func (s *Stock) IsBelowThreshold() bool {
	return s.AlertThreshold > 0 && s.Quantity <= s.AlertThreshold
}

// Movement 库存变动记录，只追加；删除时会在同一事务内回滚库存
type Movement struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type            string    `gorm:"type:varchar(16);index;not null" json:"type"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	LocationID      int64     `gorm:"index;not null" json:"locationId"`
	DestLocationID  *int64    `gorm:"index" json:"destLocationId,omitempty"`
	CardTypeID      int64     `gorm:"index;not null" json:"cardTypeId"`
	UserID          *int64    `gorm:"index" json:"userId,omitempty"`
	ReferenceNumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"referenceNumber"`
	Reason          string    `gorm:"type:varchar(256)" json:"reason"`
	Attachments     []string  `gorm:"type:text;serializer:json" json:"attachments"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	Location        *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	DestLocation    *Location `gorm:"foreignKey:DestLocationID" json:"destLocation,omitempty"`
	CardType        *CardType `gorm:"foreignKey:CardTypeID" json:"cardType,omitempty"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Movement) TableName() string {
	return "movement"
}

// StockDelta 一次变动对某个 (地点, 卡种) 库存的影响
type StockDelta struct {
	LocationID int64
	CardTypeID int64
	Delta      int64
}

// Deltas 返回变动对库存的影响，调拨的源地点在前
func (m *Movement) Deltas() []StockDelta {
	switch m.Type {
	case MovementTypeIn:
		return []StockDelta{{LocationID: m.LocationID, CardTypeID: m.CardTypeID, Delta: m.Quantity}}
	case MovementTypeOut:
		return []StockDelta{{LocationID: m.LocationID, CardTypeID: m.CardTypeID, Delta: -m.Quantity}}
	case MovementTypeTransfer:
		if m.DestLocationID == nil {
			return nil
		}
		return []StockDelta{
			{LocationID: m.LocationID, CardTypeID: m.CardTypeID, Delta: -m.Quantity},
			{LocationID: *m.DestLocationID, CardTypeID: m.CardTypeID, Delta: m.Quantity},
		}
	}
	return nil
}
