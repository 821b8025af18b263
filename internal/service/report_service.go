package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cardstock/internal/export"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	stockReportColumns    = []string{"no", "bank", "location", "cardType", "quantity", "alertThreshold", "lastUpdate"}
	movementReportColumns = []string{"no", "date", "type", "reference", "cardType", "location", "destination", "quantity", "user"}
)

// ReportData 动态报表，外键已替换为名称，行号从 1 开始
type ReportData struct {
	Type        string                   `json:"type"`
	Title       string                   `json:"title"`
	Columns     []string                 `json:"columns"`
	Rows        []map[string]interface{} `json:"rows"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Table 转成导出用的二维表
func (d *ReportData) Table() *export.Table {
	t := &export.Table{Title: d.Title, Headers: d.Columns, Rows: make([][]string, 0, len(d.Rows))}
	for _, row := range d.Rows {
		line := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			line[i] = fmt.Sprint(row[col])
		}
		t.Rows = append(t.Rows, line)
	}
	return t
}

type CreateReportInput struct {
	Type    string `json:"type" validate:"required,max=32"`
	Title   string `json:"title" validate:"required,max=128"`
	Content string `json:"content"`
}

type UpdateReportInput struct {
	Type    *string `json:"type" validate:"omitempty,max=32"`
	Title   *string `json:"title" validate:"omitempty,max=128"`
	Content *string `json:"content"`
}

type EmailReportInput struct {
	Type       string   `json:"type" validate:"required,oneof=stock mouvements"`
	Recipients []string `json:"recipients" validate:"dive,email"`
}

type ReportService struct {
	db            *gorm.DB
	mailer        mail.Sender
	settings      *SettingService
	notifications *NotificationService
	reportRepo    *repository.ReportRepository
	stockRepo     *repository.StockRepository
	movementRepo  *repository.MovementRepository
	audit         *AuditService
}

func NewReportService(db *gorm.DB, mailer mail.Sender, settings *SettingService, notifications *NotificationService) *ReportService {
	return &ReportService{
		db:            db,
		mailer:        mailer,
		settings:      settings,
		notifications: notifications,
		reportRepo:    repository.NewReportRepository(db),
		stockRepo:     repository.NewStockRepository(db),
		movementRepo:  repository.NewMovementRepository(db),
		audit:         NewAuditService(db),
	}
}

// Dynamic 实时生成 stock 或 mouvements 报表
func (s *ReportService) Dynamic(ctx context.Context, reportType string) (*ReportData, error) {
	switch reportType {
	case model.ReportTypeStock:
		return s.stockReport(ctx)
	case model.ReportTypeMouvements:
		return s.movementReport(ctx)
	}
	return nil, NewValidationError("type", "报表类型必须是 stock 或 mouvements")
}

func (s *ReportService) stockReport(ctx context.Context) (*ReportData, error) {
	stocks, err := s.stockRepo.List(ctx, repository.StockFilter{})
	if err != nil {
		return nil, fmt.Errorf("查询库存失败: %w", err)
	}

	data := &ReportData{Type: model.ReportTypeStock, Title: "Stock Report", Columns: stockReportColumns, GeneratedAt: time.Now()}
	for i, st := range stocks {
		var bank, location, cardType string
		if st.Location != nil {
			location = st.Location.Name
			if st.Location.Bank != nil {
				bank = st.Location.Bank.Name
			}
		}
		if st.CardType != nil {
			cardType = st.CardType.Name
		}
		data.Rows = append(data.Rows, map[string]interface{}{
			"no":             i + 1,
			"bank":           bank,
			"location":       location,
			"cardType":       cardType,
			"quantity":       st.Quantity,
			"alertThreshold": st.AlertThreshold,
			"lastUpdate":     st.LastUpdate.Format(timeLayout),
		})
	}
	return data, nil
}

func (s *ReportService) movementReport(ctx context.Context) (*ReportData, error) {
	movements, err := s.movementRepo.List(ctx, repository.MovementFilter{})
	if err != nil {
		return nil, fmt.Errorf("查询库存变动失败: %w", err)
	}

	data := &ReportData{Type: model.ReportTypeMouvements, Title: "Movements Report", Columns: movementReportColumns, GeneratedAt: time.Now()}
	for i, m := range movements {
		var location, dest, cardType, user string
		if m.Location != nil {
			location = m.Location.Name
		}
		if m.DestLocation != nil {
			dest = m.DestLocation.Name
		}
		if m.CardType != nil {
			cardType = m.CardType.Name
		}
		if m.User != nil {
			user = strings.TrimSpace(m.User.FirstName + " " + m.User.LastName)
			if user == "" {
				user = m.User.Email
			}
		}
		data.Rows = append(data.Rows, map[string]interface{}{
			"no":          i + 1,
			"date":        m.CreatedAt.Format(timeLayout),
			"type":        m.Type,
			"reference":   m.ReferenceNumber,
			"cardType":    cardType,
			"location":    location,
			"destination": dest,
			"quantity":    m.Quantity,
			"user":        user,
		})
	}
	return data, nil
}

func (s *ReportService) List(ctx context.Context, reportType string) ([]*model.Report, error) {
	return s.reportRepo.List(ctx, reportType)
}

func (s *ReportService) Get(ctx context.Context, id int64) (*model.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, notFound("report", id)
	}
	return report, err
}

func (s *ReportService) Create(ctx context.Context, actor Actor, in *CreateReportInput) (*model.Report, error) {
	in.Type, in.Title = trimmed(in.Type), trimmed(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	report := &model.Report{Type: in.Type, Title: in.Title, Content: in.Content, CreatedBy: actor.UserID}
	if err := s.reportRepo.Create(ctx, nil, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportService) Update(ctx context.Context, id int64, in *UpdateReportInput) (*model.Report, error) {
	in.Type, in.Title = trimmedPtr(in.Type), trimmedPtr(in.Title)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"type": in.Type, "title": in.Title})); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Type != nil {
		updates["type"] = *in.Type
	}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if len(updates) > 0 {
		if err := s.reportRepo.Update(ctx, nil, id, updates); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *ReportService) Delete(ctx context.Context, id int64) error {
	err := s.reportRepo.Delete(ctx, nil, id)
	if errors.Is(err, repository.ErrReportNotFound) {
		return notFound("report", id)
	}
	return err
}

// recipients 未指定收件人时，先取通知设置，再取 notification_recipients 配置
func (s *ReportService) recipients(ctx context.Context, given []string) ([]string, error) {
	if len(given) > 0 {
		return given, nil
	}
	out, err := s.notifications.ReportRecipients(ctx)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}
	return s.settings.NotificationRecipients(ctx)
}

// Email 生成 PDF 报表并通过 SMTP 发送
func (s *ReportService) Email(ctx context.Context, actor Actor, in *EmailReportInput) ([]string, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	to, err := s.recipients(ctx, in.Recipients)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, NewValidationError("recipients", "没有可用的收件人")
	}

	data, err := s.Dynamic(ctx, in.Type)
	if err != nil {
		return nil, err
	}
	var pdf bytes.Buffer
	if err := export.WritePDF(&pdf, data.Table()); err != nil {
		return nil, fmt.Errorf("生成 PDF 失败: %w", err)
	}

	smtp, err := s.settings.EffectiveSMTP(ctx)
	if err != nil {
		return nil, err
	}
	filename := in.Type + "-" + data.GeneratedAt.Format("20060102") + ".pdf"
	err = s.mailer.Send(ctx, smtp, &mail.Message{
		To:          to,
		Subject:     data.Title + " " + data.GeneratedAt.Format("2006-01-02"),
		Body:        "报表见附件，共 " + strconv.Itoa(len(data.Rows)) + " 行。",
		Attachments: []mail.Attachment{{Name: filename, Data: pdf.Bytes()}},
	})
	if err != nil {
		logger.LogError("report", "Email", "发送报表邮件失败", to, err)
		return nil, &ExternalServiceError{Service: "smtp", Err: err}
	}

	if err := s.audit.Record(ctx, nil, actor, model.AuditTypeReportSent, "email", "report", map[string]interface{}{
		"type": in.Type, "recipients": to, "rows": len(data.Rows),
	}); err != nil {
		return nil, fmt.Errorf("写入审计日志失败: %w", err)
	}
	logger.WithModule("report").WithFields(logrus.Fields{"type": in.Type, "recipients": len(to)}).Info("报表邮件已发送")
	return to, nil
}
