package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateSettingInput struct {
	Key   string      `json:"key" validate:"required,max=128"`
	Value interface{} `json:"value"`
}

type SMTPTestInput struct {
	To string `json:"to" validate:"required,email"`
}

// SMTPView 对外展示的 SMTP 配置，不返回密码
type SMTPView struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	From        string `json:"from"`
	PasswordSet bool   `json:"passwordSet"`
}

type SettingService struct {
	db               *gorm.DB
	cfg              *config.Config
	mailer           mail.Sender
	settingRepo      *repository.SettingRepository
	notificationRepo *repository.NotificationRepository
	outboxRepo       *repository.OutboxRepository
	audit            *AuditService
}

func NewSettingService(db *gorm.DB, cfg *config.Config, mailer mail.Sender) *SettingService {
	return &SettingService{
		db:               db,
		cfg:              cfg,
		mailer:           mailer,
		settingRepo:      repository.NewSettingRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
		audit:            NewAuditService(db),
	}
}

// stringify 配置值统一按字符串存储
func stringify(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SettingService) List(ctx context.Context) ([]*model.Setting, error) {
	return s.settingRepo.List(ctx)
}

func (s *SettingService) Get(ctx context.Context, key string) (*model.Setting, error) {
	setting, err := s.settingRepo.GetByKey(ctx, nil, key)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return nil, notFound("setting", key)
	}
	return setting, err
}

func (s *SettingService) Create(ctx context.Context, actor Actor, in *CreateSettingInput) (*model.Setting, error) {
	in.Key = trimmed(in.Key)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	value, err := stringify(in.Value)
	if err != nil {
		return nil, NewValidationError("value", "无法转换为字符串")
	}

	setting := &model.Setting{Key: in.Key, Value: value}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.settingRepo.Create(ctx, tx, setting); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("setting", "key", in.Key)
			}
			return err
		}
		return s.afterChange(ctx, tx, actor, map[string]string{in.Key: value})
	})
	if err != nil {
		return nil, err
	}
	return setting, nil
}

// Update 修改已存在的单个配置
func (s *SettingService) Update(ctx context.Context, actor Actor, key string, value interface{}) (*model.Setting, error) {
	str, err := stringify(value)
	if err != nil {
		return nil, NewValidationError("value", "无法转换为字符串")
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.settingRepo.UpdateValue(ctx, tx, key, str); err != nil {
			if errors.Is(err, repository.ErrSettingNotFound) {
				return notFound("setting", key)
			}
			return err
		}
		return s.afterChange(ctx, tx, actor, map[string]string{key: str})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

// Batch 在一个事务内按 key 排序写入，不存在的 key 会被创建
// 每个 key 写一条通知和一条 outbox 事件
func (s *SettingService) Batch(ctx context.Context, actor Actor, values map[string]interface{}) ([]*model.Setting, error) {
	if len(values) == 0 {
		return nil, NewValidationError("settings", "不能为空")
	}

	changes := make(map[string]string, len(values))
	verr := &ValidationError{}
	for k, v := range values {
		key := trimmed(k)
		if key == "" || len(key) > 128 {
			verr.Fields = append(verr.Fields, FieldError{Field: k, Message: "key 不合法"})
			continue
		}
		str, err := stringify(v)
		if err != nil {
			verr.Fields = append(verr.Fields, FieldError{Field: key, Message: "无法转换为字符串"})
			continue
		}
		changes[key] = str
	}
	if len(verr.Fields) > 0 {
		sortFields(verr.Fields)
		return nil, verr
	}

	keys := sortedKeys(changes)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := s.settingRepo.Upsert(ctx, tx, key, changes[key]); err != nil {
				return fmt.Errorf("保存配置 %s 失败: %w", key, err)
			}
		}
		return s.afterChange(ctx, tx, actor, changes)
	})
	if err != nil {
		return nil, err
	}

	out := make([]*model.Setting, 0, len(keys))
	for _, key := range keys {
		setting, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, setting)
	}
	return out, nil
}

func (s *SettingService) Delete(ctx context.Context, key string) error {
	err := s.settingRepo.Delete(ctx, nil, key)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return notFound("setting", key)
	}
	return err
}

// afterChange 通知、outbox 事件和审计日志，与配置写入同一事务
func (s *SettingService) afterChange(ctx context.Context, tx *gorm.DB, actor Actor, changes map[string]string) error {
	keys := sortedKeys(changes)
	for _, key := range keys {
		shown := changes[key]
		if isSecretKey(key) {
			shown = "******"
		}
		notification := &model.Notification{
			Type:    model.NotificationTypeSettings,
			Title:   "配置已更新",
			Message: fmt.Sprintf("%s = %s", key, shown),
		}
		if err := s.notificationRepo.Create(ctx, tx, notification); err != nil {
			return fmt.Errorf("写入通知失败: %w", err)
		}
		payload := map[string]interface{}{"key": key, "value": shown}
		if err := s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.AuditEvents, model.EventSettingChanged, key, payload); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
	}
	return s.audit.Record(ctx, tx, actor, model.AuditTypeSettingsUpdated, "update", "setting", map[string]interface{}{"keys": keys})
}

func isSecretKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "password")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EffectiveSMTP 配置文件中的 SMTP 参数，被 Settings 表中的 smtp_* 覆盖
func (s *SettingService) EffectiveSMTP(ctx context.Context) (config.SMTPConfig, error) {
	smtp := s.cfg.SMTP
	values, err := s.settingRepo.GetMap(ctx, []string{
		model.SettingSMTPHost, model.SettingSMTPPort, model.SettingSMTPUser, model.SettingSMTPPassword, model.SettingSMTPFrom,
	})
	if err != nil {
		return smtp, err
	}
	if v := values[model.SettingSMTPHost]; v != "" {
		smtp.Host = v
	}
	if v := values[model.SettingSMTPPort]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return smtp, NewValidationError(model.SettingSMTPPort, "端口不合法: "+v)
		}
		smtp.Port = port
	}
	if v := values[model.SettingSMTPUser]; v != "" {
		smtp.Username = v
	}
	if v := values[model.SettingSMTPPassword]; v != "" {
		smtp.Password = v
	}
	if v := values[model.SettingSMTPFrom]; v != "" {
		smtp.From = v
	}
	return smtp, nil
}

func (s *SettingService) SMTPView(ctx context.Context) (*SMTPView, error) {
	smtp, err := s.EffectiveSMTP(ctx)
	if err != nil {
		return nil, err
	}
	return &SMTPView{
		Host:        smtp.Host,
		Port:        smtp.Port,
		Username:    smtp.Username,
		From:        smtp.From,
		PasswordSet: smtp.Password != "",
	}, nil
}

// TestSMTP 用当前生效的配置发一封测试邮件
func (s *SettingService) TestSMTP(ctx context.Context, in *SMTPTestInput) error {
	in.To = trimmed(in.To)
	if err := validateStruct(in); err != nil {
		return err
	}
	smtp, err := s.EffectiveSMTP(ctx)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, smtp, &mail.Message{
		To:      []string{in.To},
		Subject: "SMTP 测试邮件",
		Body:    "这是一封测试邮件，收到说明 SMTP 配置可用。",
	})
	if err != nil {
		return &ExternalServiceError{Service: "smtp", Err: err}
	}
	return nil
}

// NotificationRecipients 逗号分隔的收件人配置
func (s *SettingService) NotificationRecipients(ctx context.Context) ([]string, error) {
	values, err := s.settingRepo.GetMap(ctx, []string{model.SettingNotificationEmails})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(values[model.SettingNotificationEmails], ",") {
		if p := trimmed(part); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
