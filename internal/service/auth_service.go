package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/cache"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Principal 已认证的当前用户
type Principal struct {
	User      *model.User
	SessionID int64
	Token     string
}

type AuthService struct {
	db           *gorm.DB
	cfg          *config.Config
	sessionCache *cache.SessionCache
	userRepo     *repository.UserRepository
	roleRepo     *repository.RoleRepository
	permRepo     *repository.PermissionRepository
	sessionRepo  *repository.SessionRepository
	outboxRepo   *repository.OutboxRepository
	audit        *AuditService
}

const sessionCacheTTL = 5 * time.Minute

func NewAuthService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AuthService {
	var sessionCache *cache.SessionCache
	if redisClient != nil {
		sessionCache = cache.NewSessionCache(redisClient, sessionCacheTTL)
	}
	return &AuthService{
		db:           db,
		cfg:          cfg,
		sessionCache: sessionCache,
		userRepo:     repository.NewUserRepository(db),
		roleRepo:     repository.NewRoleRepository(db),
		permRepo:     repository.NewPermissionRepository(db),
		sessionRepo:  repository.NewSessionRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		audit:        NewAuditService(db),
	}
}

// HashPassword bcrypt 哈希，cost 取配置
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// maxUserAgentLen 与 sessions.user_agent 列宽一致
const maxUserAgentLen = 191

// normalizeUserAgent 按字符截断，同一浏览器的超长 UA 截断后仍对应同一会话
func normalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if utf8.RuneCountInString(ua) <= maxUserAgentLen {
		return ua
	}
	return string([]rune(ua)[:maxUserAgentLen])
}

// Login 校验密码后在一个事务内：更新 last_login、清理已撤销会话、复用或新建会话、写审计日志
// 任何一步失败都不会留下会话或审计记录
func (s *AuthService) Login(ctx context.Context, in *LoginInput, userAgent, ip string) (*LoginResult, error) {
	in.Email = strings.ToLower(trimmed(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, nil, in.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	userAgent = normalizeUserAgent(userAgent)
	token := uuid.NewString()
	now := time.Now()
	actor := ActorOf(user.ID, ip)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.UpdateLastLogin(ctx, tx, user.ID, now); err != nil {
			return fmt.Errorf("更新登录时间失败: %w", err)
		}
		if err := s.sessionRepo.PurgeRevoked(ctx, tx, user.ID, userAgent); err != nil {
			return fmt.Errorf("清理会话失败: %w", err)
		}

		session, err := s.sessionRepo.GetActive(ctx, tx, user.ID, userAgent)
		if err != nil {
			return fmt.Errorf("查询会话失败: %w", err)
		}
		if session != nil {
			if err := s.sessionCache.Delete(ctx, session.Token); err != nil {
				logger.LogError("auth", "Login", "删除旧会话缓存失败", session.ID, err)
			}
			if err := s.sessionRepo.Refresh(ctx, tx, session.ID, token, ip, now); err != nil {
				return fmt.Errorf("刷新会话失败: %w", err)
			}
		} else {
			session = &model.Session{
				Token:        token,
				UserID:       user.ID,
				UserAgent:    userAgent,
				IP:           ip,
				LastActivity: now,
			}
			if err := s.sessionRepo.Create(ctx, tx, session); err != nil {
				return fmt.Errorf("创建会话失败: %w", err)
			}
		}

		details := map[string]interface{}{"sessionId": session.ID, "userAgent": userAgent}
		if err := s.audit.Record(ctx, tx, actor, model.AuditTypeUserLogin, "login", "session", details); err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}
		payload := map[string]interface{}{"user_id": user.ID, "session_id": session.ID, "ip": ip, "at": now.Format(time.RFC3339)}
		if err := s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.AuditEvents, model.EventUserLogin, user.Email, payload); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.LastLogin = &now
	logger.WithModule("auth").WithFields(logrus.Fields{"user_id": user.ID, "ip": ip}).Info("用户登录")
	return &LoginResult{Token: token, User: user}, nil
}

// Logout 服务端撤销会话
func (s *AuthService) Logout(ctx context.Context, p *Principal, ip string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.sessionRepo.Revoke(ctx, tx, p.SessionID); err != nil {
			return fmt.Errorf("撤销会话失败: %w", err)
		}
		return s.audit.Record(ctx, tx, ActorOf(p.User.ID, ip), model.AuditTypeUserLogout, "logout", "session",
			map[string]interface{}{"sessionId": p.SessionID})
	})
	if err != nil {
		return err
	}
	if err := s.sessionCache.Delete(ctx, p.Token); err != nil {
		logger.LogError("auth", "Logout", "删除会话缓存失败", p.SessionID, err)
	}
	return nil
}

// Authenticate 先查 Redis 缓存，未命中再查库并刷新最后活动时间
// 撤销会话时会同时删除缓存，缓存命中即视为会话有效
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	entry, cached, err := s.sessionCache.Get(ctx, token)
	if err != nil {
		logger.LogError("auth", "Authenticate", "读取会话缓存失败", nil, err)
	}
	if !cached {
		entry, err = s.loadSession(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	user, err := s.userRepo.GetByID(ctx, nil, entry.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}
	return &Principal{User: user, SessionID: entry.SessionID, Token: token}, nil
}

func (s *AuthService) loadSession(ctx context.Context, token string) (*cache.CachedSession, error) {
	session, err := s.sessionRepo.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if session.Revoked {
		return nil, ErrUnauthenticated
	}

	ttl := time.Duration(s.cfg.Auth.SessionTTLMinutes) * time.Minute
	if time.Since(session.LastActivity) > ttl {
		if err := s.sessionRepo.Revoke(ctx, nil, session.ID); err != nil {
			logger.LogError("auth", "Authenticate", "撤销过期会话失败", session.ID, err)
		}
		return nil, ErrUnauthenticated
	}
	if err := s.sessionRepo.Touch(ctx, session.ID, time.Now()); err != nil {
		return nil, err
	}

	entry := &cache.CachedSession{SessionID: session.ID, UserID: session.UserID}
	if err := s.sessionCache.Set(ctx, token, *entry); err != nil {
		logger.LogError("auth", "Authenticate", "写入会话缓存失败", session.ID, err)
	}
	return entry, nil
}

// SeedDefaults 补齐内置权限、admin 角色和配置中的管理员账号，已存在的不动
func (s *AuthService) SeedDefaults(ctx context.Context) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		perms := make([]model.Permission, 0, len(model.DefaultPermissions))
		for _, def := range model.DefaultPermissions {
			p, err := s.permRepo.GetByName(ctx, tx, def.Name)
			if errors.Is(err, repository.ErrPermissionNotFound) {
				p = &model.Permission{Name: def.Name, Description: def.Description}
				err = s.permRepo.Create(ctx, tx, p)
			}
			if err != nil {
				return fmt.Errorf("初始化权限 %s 失败: %w", def.Name, err)
			}
			perms = append(perms, *p)
		}

		role, err := s.roleRepo.GetByName(ctx, tx, model.RoleAdmin)
		if errors.Is(err, repository.ErrRoleNotFound) {
			role = &model.Role{Name: model.RoleAdmin, Description: "系统管理员"}
			if err = s.roleRepo.Create(ctx, tx, role); err == nil {
				err = s.roleRepo.ReplacePermissions(ctx, tx, role, perms)
			}
		}
		if err != nil {
			return fmt.Errorf("初始化 admin 角色失败: %w", err)
		}

		email := strings.ToLower(trimmed(s.cfg.Auth.AdminEmail))
		if email == "" || s.cfg.Auth.AdminPassword == "" {
			return nil
		}
		if _, err := s.userRepo.GetByEmail(ctx, tx, email); err == nil {
			return nil
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		hash, err := HashPassword(s.cfg.Auth.AdminPassword, s.cfg.Auth.BcryptCost)
		if err != nil {
			return err
		}
		admin := &model.User{
			Email:        email,
			PasswordHash: hash,
			FirstName:    "Admin",
			RoleID:       &role.ID,
			IsActive:     true,
		}
		if err := s.userRepo.Create(ctx, tx, admin); err != nil {
			return fmt.Errorf("创建管理员失败: %w", err)
		}
		logger.WithModule("auth").WithField("email", email).Info("已创建管理员账号")
		return nil
	})
}

// ExpireIdle 撤销最后活动早于 before 的会话，返回处理的数量
func (s *AuthService) ExpireIdle(ctx context.Context, before time.Time, limit int) (int, error) {
	sessions, err := s.sessionRepo.GetIdle(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, session := range sessions {
		if err := s.sessionRepo.Revoke(ctx, nil, session.ID); err != nil {
			logger.LogError("auth", "ExpireIdle", "撤销会话失败", session.ID, err)
			continue
		}
		if err := s.sessionCache.Delete(ctx, session.Token); err != nil {
			logger.LogError("auth", "ExpireIdle", "删除会话缓存失败", session.ID, err)
		}
		done++
	}
	return done, nil
}
