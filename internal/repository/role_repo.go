package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, tx *gorm.DB, role *model.Role) error {
	return pick(r.db, tx).WithContext(ctx).Create(role).Error
}

func (r *RoleRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Role, error) {
	var role model.Role
	q := pick(r.db, tx).WithContext(ctx).Preload("Permissions").Where("id = ?", id)
	if err := first(q, &role, ErrRoleNotFound); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.Role, error) {
	var role model.Role
	q := pick(r.db, tx).WithContext(ctx).Preload("Permissions").Where("name = ?", name)
	if err := first(q, &role, ErrRoleNotFound); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.Role{}).Where("id = ?", id).Updates(updates).Error
}

// ReplacePermissions 覆盖角色的权限集合
func (r *RoleRepository) ReplacePermissions(ctx context.Context, tx *gorm.DB, role *model.Role, permissions []model.Permission) error {
	return pick(r.db, tx).WithContext(ctx).Model(role).Association("Permissions").Replace(permissions)
}

func (r *RoleRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	db := pick(r.db, tx).WithContext(ctx)
	role := &model.Role{ID: id}
	if err := db.Model(role).Association("Permissions").Clear(); err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&model.Role{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) CountUsers(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	var n int64
	err := pick(r.db, tx).WithContext(ctx).Model(&model.User{}).Where("role_id = ?", id).Count(&n).Error
	return n, err
}

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Create(ctx context.Context, tx *gorm.DB, permission *model.Permission) error {
	return pick(r.db, tx).WithContext(ctx).Create(permission).Error
}

func (r *PermissionRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.Permission, error) {
	var permission model.Permission
	if err := first(pick(r.db, tx).WithContext(ctx).Where("name = ?", name), &permission, ErrPermissionNotFound); err != nil {
		return nil, err
	}
	return &permission, nil
}

// GetByIDs 返回找到的权限，调用方自行比对数量
func (r *PermissionRepository) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]model.Permission, error) {
	var permissions []model.Permission
	if len(ids) == 0 {
		return permissions, nil
	}
	err := pick(r.db, tx).WithContext(ctx).Where("id IN ?", ids).Find(&permissions).Error
	return permissions, err
}

func (r *PermissionRepository) List(ctx context.Context) ([]*model.Permission, error) {
	var permissions []*model.Permission
	err := r.db.WithContext(ctx).Order("name ASC").Find(&permissions).Error
	return permissions, err
}

func (r *PermissionRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	db := pick(r.db, tx).WithContext(ctx)
	if err := db.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&model.Permission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPermissionNotFound
	}
	return nil
}
