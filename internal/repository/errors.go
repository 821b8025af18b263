package repository

import (
	"errors"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrBankNotFound                = errors.New("银行不存在")
	ErrLocationNotFound            = errors.New("地点不存在")
	ErrCardTypeNotFound            = errors.New("卡种不存在")
	ErrStockNotFound               = errors.New("库存不存在")
	ErrMovementNotFound            = errors.New("变动记录不存在")
	ErrUserNotFound                = errors.New("用户不存在")
	ErrRoleNotFound                = errors.New("角色不存在")
	ErrPermissionNotFound          = errors.New("权限不存在")
	ErrSessionNotFound             = errors.New("会话不存在")
	ErrSettingNotFound             = errors.New("配置项不存在")
	ErrNotificationNotFound        = errors.New("通知不存在")
	ErrNotificationSettingNotFound = errors.New("通知设置不存在")
	ErrReportNotFound              = errors.New("报表不存在")
	ErrStockNotEnough              = errors.New("库存不足")
)

const mysqlDuplicateEntry = 1062

// IsDuplicateKey 判断是否唯一索引冲突
// 兼容 gorm 的错误翻译、MySQL 1062 以及 SQLite 的 UNIQUE constraint
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// first 查询单条记录，不存在时返回 notFound
func first(q *gorm.DB, dest interface{}, notFound error) error {
	err := q.First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		return err
	}
	return nil
}

func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
