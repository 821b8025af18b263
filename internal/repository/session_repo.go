package repository

import (
	"context"
	"time"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, tx *gorm.DB, session *model.Session) error {
	return pick(r.db, tx).WithContext(ctx).Create(session).Error
}

// PurgeRevoked 删除 (用户, UA) 下已撤销的会话，避免和新会话的唯一索引冲突
func (r *SessionRepository) PurgeRevoked(ctx context.Context, tx *gorm.DB, userID int64, userAgent string) error {
	return pick(r.db, tx).WithContext(ctx).
		Where("user_id = ? AND user_agent = ? AND revoked = ?", userID, userAgent, true).
		Delete(&model.Session{}).Error
}

// GetActive 查询 (用户, UA) 下未撤销的会话，不存在返回 nil, nil
func (r *SessionRepository) GetActive(ctx context.Context, tx *gorm.DB, userID int64, userAgent string) (*model.Session, error) {
	var session model.Session
	err := first(pick(r.db, tx).WithContext(ctx).
		Where("user_id = ? AND user_agent = ? AND revoked = ?", userID, userAgent, false),
		&session, ErrSessionNotFound)
	if err == ErrSessionNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	if err := first(r.db.WithContext(ctx).Where("token = ?", token), &session, ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &session, nil
}

// Refresh 复用会话：更新 token、IP 和最后活动时间
func (r *SessionRepository) Refresh(ctx context.Context, tx *gorm.DB, id int64, token, ip string, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"token":         token,
			"ip":            ip,
			"last_activity": at,
		}).Error
}

func (r *SessionRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Update("last_activity", at).Error
}

func (r *SessionRepository) Revoke(ctx context.Context, tx *gorm.DB, id int64) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Update("revoked", true).Error
}

// GetIdle 查询最后活动时间早于 before 的有效会话
func (r *SessionRepository) GetIdle(ctx context.Context, before time.Time, limit int) ([]*model.Session, error) {
	var sessions []*model.Session
	err := r.db.WithContext(ctx).
		Where("revoked = ? AND last_activity < ?", false, before).
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// DeleteByUser 删除用户的全部会话，返回被删除会话的 token
func (r *SessionRepository) DeleteByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]string, error) {
	db := pick(r.db, tx).WithContext(ctx)
	var tokens []string
	if err := db.Model(&model.Session{}).Where("user_id = ?", userID).Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}
