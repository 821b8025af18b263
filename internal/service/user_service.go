package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/cache"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email,max=128"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"max=64"`
	LastName  string `json:"lastName" validate:"max=64"`
	RoleID    *int64 `json:"roleId" validate:"omitempty,gt=0"`
	IsActive  *bool  `json:"isActive"`
}

type UpdateUserInput struct {
	Email     *string `json:"email" validate:"omitempty,email,max=128"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName *string `json:"firstName" validate:"omitempty,max=64"`
	LastName  *string `json:"lastName" validate:"omitempty,max=64"`
	RoleID    *int64  `json:"roleId" validate:"omitempty,gt=0"`
	IsActive  *bool   `json:"isActive"`
}

type UserService struct {
	db           *gorm.DB
	cfg          *config.Config
	sessionCache *cache.SessionCache
	userRepo     *repository.UserRepository
	roleRepo     *repository.RoleRepository
	sessionRepo  *repository.SessionRepository
}

func NewUserService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *UserService {
	var sessionCache *cache.SessionCache
	if redisClient != nil {
		sessionCache = cache.NewSessionCache(redisClient, sessionCacheTTL)
	}
	return &UserService{
		db:           db,
		cfg:          cfg,
		sessionCache: sessionCache,
		userRepo:     repository.NewUserRepository(db),
		roleRepo:     repository.NewRoleRepository(db),
		sessionRepo:  repository.NewSessionRepository(db),
	}
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, notFound("user", id)
	}
	return user, err
}

func (s *UserService) checkRole(ctx context.Context, roleID *int64) error {
	if roleID == nil {
		return nil
	}
	_, err := s.roleRepo.GetByID(ctx, nil, *roleID)
	if errors.Is(err, repository.ErrRoleNotFound) {
		return notFound("role", *roleID)
	}
	return err
}

func (s *UserService) Create(ctx context.Context, in *CreateUserInput) (*model.User, error) {
	in.Email = strings.ToLower(trimmed(in.Email))
	in.FirstName, in.LastName = trimmed(in.FirstName), trimmed(in.LastName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}
	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		RoleID:       in.RoleID,
		IsActive:     true,
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, conflict("user", "email", in.Email)
		}
		return nil, err
	}
	// is_active 默认值为 true，gorm 插入时会跳过零值，需要单独写 false
	if !user.IsActive {
		if err := s.userRepo.Update(ctx, nil, user.ID, map[string]interface{}{"is_active": false}); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, user.ID)
}

func (s *UserService) Update(ctx context.Context, id int64, in *UpdateUserInput) (*model.User, error) {
	if in.Email != nil {
		v := strings.ToLower(trimmed(*in.Email))
		in.Email = &v
	}
	in.FirstName, in.LastName = trimmedPtr(in.FirstName), trimmedPtr(in.LastName)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"email": in.Email})); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.Password != nil {
		hash, err := HashPassword(*in.Password, s.cfg.Auth.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("密码加密失败: %w", err)
		}
		updates["password_hash"] = hash
	}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
	}
	if in.RoleID != nil {
		updates["role_id"] = *in.RoleID
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, nil, id, updates); err != nil {
			if repository.IsDuplicateKey(err) {
				return nil, conflict("user", "email", *in.Email)
			}
			return nil, err
		}
	}

	// 修改密码或停用后，已有会话全部失效
	if in.Password != nil || (in.IsActive != nil && !*in.IsActive) {
		tokens, err := s.sessionRepo.DeleteByUser(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		if err := s.sessionCache.Delete(ctx, tokens...); err != nil {
			logger.LogError("user", "Update", "删除会话缓存失败", id, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 用户登记过库存变动时拒绝删除
func (s *UserService) Delete(ctx context.Context, id int64) error {
	var tokens []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return notFound("user", id)
			}
			return err
		}
		n, err := s.userRepo.CountMovements(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("user", id)
		}
		if tokens, err = s.sessionRepo.DeleteByUser(ctx, tx, id); err != nil {
			return err
		}
		return s.userRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	if err := s.sessionCache.Delete(ctx, tokens...); err != nil {
		logger.LogError("user", "Delete", "删除会话缓存失败", id, err)
	}
	return nil
}
