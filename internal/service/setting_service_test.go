package service

import (
	"errors"
	"testing"

	"cardstock/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingService_CRUD(t *testing.T) {
	e := newEnv(t)

	s, err := e.settings.Create(e.ctx, Actor{}, &CreateSettingInput{Key: "theme", Value: "dark"})
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Value)

	_, err = e.settings.Create(e.ctx, Actor{}, &CreateSettingInput{Key: "theme", Value: "light"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	s, err = e.settings.Update(e.ctx, Actor{}, "theme", "light")
	require.NoError(t, err)
	assert.Equal(t, "light", s.Value)

	var nf *NotFoundError
	_, err = e.settings.Update(e.ctx, Actor{}, "missing", "x")
	require.ErrorAs(t, err, &nf)

	require.NoError(t, e.settings.Delete(e.ctx, "theme"))
	require.ErrorAs(t, e.settings.Delete(e.ctx, "theme"), &nf)
}

func TestSettingService_BatchIsSortedAndStringified(t *testing.T) {
	e := newEnv(t)

	out, err := e.settings.Batch(e.ctx, Actor{IP: "10.0.0.9"}, map[string]interface{}{
		"smtp_port":           float64(2525),
		"alerts_enabled":      true,
		"ratio":               0.5,
		model.SettingSMTPHost: "smtp.db.test",
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	keys := []string{out[0].Key, out[1].Key, out[2].Key, out[3].Key}
	assert.Equal(t, []string{"alerts_enabled", "ratio", "smtp_host", "smtp_port"}, keys)
	assert.Equal(t, "true", out[0].Value)
	assert.Equal(t, "0.5", out[1].Value)
	assert.Equal(t, "2525", out[3].Value)

	assert.Equal(t, int64(4), e.count(t, &model.Notification{}, "type = ?", model.NotificationTypeSettings))
	assert.Equal(t, int64(4), e.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventSettingChanged))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeSettingsUpdated))

	smtp, err := e.settings.EffectiveSMTP(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "smtp.db.test", smtp.Host)
	assert.Equal(t, 2525, smtp.Port)
	assert.Equal(t, "file@bank.test", smtp.From)
}

func TestSettingService_BatchRejectsEmpty(t *testing.T) {
	e := newEnv(t)

	_, err := e.settings.Batch(e.ctx, Actor{}, map[string]interface{}{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = e.settings.Batch(e.ctx, Actor{}, map[string]interface{}{" ": "x", "ok": "y"})
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, e.count(t, &model.Setting{}))
}

func TestSettingService_SMTPViewMasksPassword(t *testing.T) {
	e := newEnv(t)
	_, err := e.settings.Batch(e.ctx, Actor{}, map[string]interface{}{model.SettingSMTPPassword: "s3cret"})
	require.NoError(t, err)

	view, err := e.settings.SMTPView(e.ctx)
	require.NoError(t, err)
	assert.True(t, view.PasswordSet)

	var n model.Notification
	require.NoError(t, e.db.Where("type = ?", model.NotificationTypeSettings).First(&n).Error)
	assert.NotContains(t, n.Message, "s3cret")
}

func TestSettingService_TestSMTP(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.settings.TestSMTP(e.ctx, &SMTPTestInput{To: "ops@bank.test"}))
	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, []string{"ops@bank.test"}, e.mailer.sent[0].To)
	assert.Equal(t, "smtp.file.test", e.mailer.cfgs[0].Host)

	e.mailer.err = errors.New("connection refused")
	err := e.settings.TestSMTP(e.ctx, &SMTPTestInput{To: "ops@bank.test"})
	var xe *ExternalServiceError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "smtp", xe.Service)

	var ve *ValidationError
	require.ErrorAs(t, e.settings.TestSMTP(e.ctx, &SMTPTestInput{To: "nope"}), &ve)
}

func TestNotificationService_SettingsCRUD(t *testing.T) {
	e := newEnv(t)

	ns, err := e.notifications.CreateSetting(e.ctx, &CreateNotificationSettingInput{Email: "Ops@Bank.test", StockAlerts: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "ops@bank.test", ns.Email)
	assert.False(t, ns.StockAlerts)
	assert.Equal(t, "none", ns.ReportFrequency)

	_, err = e.notifications.CreateSetting(e.ctx, &CreateNotificationSettingInput{Email: "ops@bank.test"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	ns, err = e.notifications.UpdateSetting(e.ctx, ns.ID, &UpdateNotificationSettingInput{ReportFrequency: ptr("weekly")})
	require.NoError(t, err)
	assert.Equal(t, "weekly", ns.ReportFrequency)

	_, err = e.notifications.UpdateSetting(e.ctx, ns.ID, &UpdateNotificationSettingInput{ReportFrequency: ptr("hourly")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, e.notifications.DeleteSetting(e.ctx, ns.ID))
	assert.Equal(t, int64(3), e.count(t, &model.Notification{}, "type = ?", model.NotificationTypeRecipients))

	list, err := e.notifications.List(e.ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.NoError(t, e.notifications.MarkRead(e.ctx, list[0].ID))
	list, err = e.notifications.List(e.ctx, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	var nf *NotFoundError
	require.ErrorAs(t, e.notifications.MarkRead(e.ctx, 999), &nf)
}
