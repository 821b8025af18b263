package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateNotificationSettingInput struct {
	Email           string `json:"email" validate:"required,email,max=128"`
	StockAlerts     *bool  `json:"stockAlerts"`
	MovementAlerts  *bool  `json:"movementAlerts"`
	ReportFrequency string `json:"reportFrequency" validate:"omitempty,oneof=none daily weekly monthly"`
}

type UpdateNotificationSettingInput struct {
	Email           *string `json:"email" validate:"omitempty,email,max=128"`
	StockAlerts     *bool   `json:"stockAlerts"`
	MovementAlerts  *bool   `json:"movementAlerts"`
	ReportFrequency *string `json:"reportFrequency" validate:"omitempty,oneof=none daily weekly monthly"`
}

type NotificationService struct {
	db                  *gorm.DB
	notificationRepo    *repository.NotificationRepository
	notificationSetRepo *repository.NotificationSettingRepository
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{
		db:                  db,
		notificationRepo:    repository.NewNotificationRepository(db),
		notificationSetRepo: repository.NewNotificationSettingRepository(db),
	}
}

func (s *NotificationService) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	return s.notificationRepo.List(ctx, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, id int64) error {
	err := s.notificationRepo.MarkRead(ctx, id)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return notFound("notification", id)
	}
	return err
}

func (s *NotificationService) ListSettings(ctx context.Context) ([]*model.NotificationSetting, error) {
	return s.notificationSetRepo.List(ctx)
}

func (s *NotificationService) getSetting(ctx context.Context, tx *gorm.DB, id int64) (*model.NotificationSetting, error) {
	ns, err := s.notificationSetRepo.GetByID(ctx, tx, id)
	if errors.Is(err, repository.ErrNotificationSettingNotFound) {
		return nil, notFound("notificationSetting", id)
	}
	return ns, err
}

func (s *NotificationService) CreateSetting(ctx context.Context, in *CreateNotificationSettingInput) (*model.NotificationSetting, error) {
	in.Email = strings.ToLower(trimmed(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	ns := &model.NotificationSetting{Email: in.Email, StockAlerts: true, ReportFrequency: "none"}
	if in.ReportFrequency != "" {
		ns.ReportFrequency = in.ReportFrequency
	}
	if in.MovementAlerts != nil {
		ns.MovementAlerts = *in.MovementAlerts
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.notificationSetRepo.Create(ctx, tx, ns); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("notificationSetting", "email", in.Email)
			}
			return err
		}
		// stock_alerts 默认值为 true，false 需要插入后单独更新
		if in.StockAlerts != nil && !*in.StockAlerts {
			if err := s.notificationSetRepo.Update(ctx, tx, ns.ID, map[string]interface{}{"stock_alerts": false}); err != nil {
				return err
			}
		}
		return s.notify(ctx, tx, fmt.Sprintf("新增通知接收人 %s", ns.Email))
	})
	if err != nil {
		return nil, err
	}
	return s.getSetting(ctx, nil, ns.ID)
}

func (s *NotificationService) UpdateSetting(ctx context.Context, id int64, in *UpdateNotificationSettingInput) (*model.NotificationSetting, error) {
	if in.Email != nil {
		v := strings.ToLower(trimmed(*in.Email))
		in.Email = &v
	}
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"email": in.Email})); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.getSetting(ctx, tx, id)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.Email != nil {
			updates["email"] = *in.Email
		}
		if in.StockAlerts != nil {
			updates["stock_alerts"] = *in.StockAlerts
		}
		if in.MovementAlerts != nil {
			updates["movement_alerts"] = *in.MovementAlerts
		}
		if in.ReportFrequency != nil {
			updates["report_frequency"] = *in.ReportFrequency
		}
		if len(updates) == 0 {
			return nil
		}
		if err := s.notificationSetRepo.Update(ctx, tx, id, updates); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("notificationSetting", "email", *in.Email)
			}
			return err
		}
		return s.notify(ctx, tx, fmt.Sprintf("通知接收人 %s 的设置已更新", current.Email))
	})
	if err != nil {
		return nil, err
	}
	return s.getSetting(ctx, nil, id)
}

func (s *NotificationService) DeleteSetting(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.getSetting(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.notificationSetRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.notify(ctx, tx, fmt.Sprintf("已删除通知接收人 %s", current.Email))
	})
}

func (s *NotificationService) notify(ctx context.Context, tx *gorm.DB, message string) error {
	return s.notificationRepo.Create(ctx, tx, &model.Notification{
		Type:    model.NotificationTypeRecipients,
		Title:   "通知设置变更",
		Message: message,
	})
}

// ReportRecipients 报表邮件的默认收件人
func (s *NotificationService) ReportRecipients(ctx context.Context) ([]string, error) {
	settings, err := s.notificationSetRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ns := range settings {
		if ns.Email != "" {
			out = append(out, ns.Email)
		}
	}
	return out, nil
}
