package repository

import (
	"context"
	"time"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	return pick(r.db, tx).WithContext(ctx).Create(user).Error
}

// GetByID 带出角色及其权限，权限校验要用
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	q := pick(r.db, tx).WithContext(ctx).Preload("Role.Permissions").Where("id = ?", id)
	if err := first(q, &user, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.User, error) {
	var user model.User
	q := pick(r.db, tx).WithContext(ctx).Preload("Role").Where("email = ?", email)
	if err := first(q, &user, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Preload("Role").Order("email ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login", at).Error
}

func (r *UserRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}

// CountMovements 用户作为操作人的变动记录数
func (r *UserRepository) CountMovements(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	var n int64
	err := pick(r.db, tx).WithContext(ctx).Model(&model.Movement{}).Where("user_id = ?", id).Count(&n).Error
	return n, err
}
