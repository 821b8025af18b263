package model

import (
	"time"
)

const RoleAdmin = "admin"

// User 系统用户，密码只保存 bcrypt 哈希
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(128);not null" json:"-"`
	FirstName    string     `gorm:"type:varchar(64)" json:"firstName"`
	LastName     string     `gorm:"type:varchar(64)" json:"lastName"`
	RoleID       *int64     `gorm:"index" json:"roleId,omitempty"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	Role         *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (User) TableName() string {
	return "sys_user"
}

// HasPermission admin 角色拥有全部权限
func (u *User) HasPermission(name string) bool {
	if u.Role == nil {
		return false
	}
	if u.Role.Name == RoleAdmin {
		return true
	}
	for _, p := range u.Role.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:varchar(256)" json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Role) TableName() string {
	return "role"
}

type Permission struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(256)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Permission) TableName() string {
	return "permission"
}

// Session 登录会话
// (user_id, user_agent) 唯一：同一用户同一设备最多一条会话
type Session struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID       int64     `gorm:"uniqueIndex:uk_session_user_agent;not null" json:"userId"`
	UserAgent    string    `gorm:"type:varchar(191);uniqueIndex:uk_session_user_agent;not null" json:"userAgent"`
	IP           string    `gorm:"type:varchar(64)" json:"ip"`
	Revoked      bool      `gorm:"not null;default:false;index" json:"revoked"`
	LastActivity time.Time `gorm:"not null;index" json:"lastActivity"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Session) TableName() string {
	return "session"
}
