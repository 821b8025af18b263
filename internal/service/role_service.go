package service

import (
	"context"
	"errors"
	"fmt"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateRoleInput struct {
	Name          string  `json:"name" validate:"required,max=64"`
	Description   string  `json:"description" validate:"max=256"`
	PermissionIDs []int64 `json:"permissionIds" validate:"dive,gt=0"`
}

type UpdateRoleInput struct {
	Name          *string  `json:"name" validate:"omitempty,max=64"`
	Description   *string  `json:"description" validate:"omitempty,max=256"`
	PermissionIDs *[]int64 `json:"permissionIds" validate:"omitempty,dive,gt=0"`
}

type CreatePermissionInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

type RoleService struct {
	db       *gorm.DB
	roleRepo *repository.RoleRepository
	permRepo *repository.PermissionRepository
}

func NewRoleService(db *gorm.DB) *RoleService {
	return &RoleService{
		db:       db,
		roleRepo: repository.NewRoleRepository(db),
		permRepo: repository.NewPermissionRepository(db),
	}
}

func (s *RoleService) List(ctx context.Context) ([]*model.Role, error) {
	return s.roleRepo.List(ctx)
}

func (s *RoleService) Get(ctx context.Context, id int64) (*model.Role, error) {
	role, err := s.roleRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrRoleNotFound) {
		return nil, notFound("role", id)
	}
	return role, err
}

// resolvePermissions 所有 ID 都必须存在
func (s *RoleService) resolvePermissions(ctx context.Context, tx *gorm.DB, ids []int64) ([]model.Permission, error) {
	perms, err := s.permRepo.GetByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]bool, len(perms))
	for _, p := range perms {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, notFound("permission", id)
		}
	}
	return perms, nil
}

func (s *RoleService) Create(ctx context.Context, in *CreateRoleInput) (*model.Role, error) {
	in.Name, in.Description = trimmed(in.Name), trimmed(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	role := &model.Role{Name: in.Name, Description: in.Description}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		perms, err := s.resolvePermissions(ctx, tx, in.PermissionIDs)
		if err != nil {
			return err
		}
		if err := s.roleRepo.Create(ctx, tx, role); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("role", "name", in.Name)
			}
			return err
		}
		if len(perms) > 0 {
			if err := s.roleRepo.ReplacePermissions(ctx, tx, role, perms); err != nil {
				return fmt.Errorf("设置角色权限失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, role.ID)
}

func (s *RoleService) Update(ctx context.Context, id int64, in *UpdateRoleInput) (*model.Role, error) {
	in.Name, in.Description = trimmedPtr(in.Name), trimmedPtr(in.Description)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"name": in.Name})); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		role, err := s.roleRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrRoleNotFound) {
				return notFound("role", id)
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if len(updates) > 0 {
			if err := s.roleRepo.Update(ctx, tx, id, updates); err != nil {
				if repository.IsDuplicateKey(err) {
					return conflict("role", "name", *in.Name)
				}
				return err
			}
		}
		if in.PermissionIDs != nil {
			perms, err := s.resolvePermissions(ctx, tx, *in.PermissionIDs)
			if err != nil {
				return err
			}
			if err := s.roleRepo.ReplacePermissions(ctx, tx, role, perms); err != nil {
				return fmt.Errorf("设置角色权限失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 还有用户使用的角色不能删除
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		role, err := s.roleRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrRoleNotFound) {
				return notFound("role", id)
			}
			return err
		}
		if role.Name == model.RoleAdmin {
			return &ConflictError{Resource: "role", Reason: "内置 admin 角色不能删除"}
		}
		n, err := s.roleRepo.CountUsers(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("role", id)
		}
		return s.roleRepo.Delete(ctx, tx, id)
	})
}

func (s *RoleService) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	return s.permRepo.List(ctx)
}

func (s *RoleService) CreatePermission(ctx context.Context, in *CreatePermissionInput) (*model.Permission, error) {
	in.Name, in.Description = trimmed(in.Name), trimmed(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	p := &model.Permission{Name: in.Name, Description: in.Description}
	if err := s.permRepo.Create(ctx, nil, p); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, conflict("permission", "name", in.Name)
		}
		return nil, err
	}
	return p, nil
}

func (s *RoleService) DeletePermission(ctx context.Context, id int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.permRepo.Delete(ctx, tx, id)
	})
	if errors.Is(err, repository.ErrPermissionNotFound) {
		return notFound("permission", id)
	}
	return err
}
