package service

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"cardstock/internal/model"
	"cardstock/internal/repository"
	"cardstock/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) user(t *testing.T, email, password string) *model.User {
	t.Helper()
	u, err := e.users.Create(e.ctx, &CreateUserInput{Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func TestAuthService_LoginCreatesSessionAndAudit(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ops@bank.test", "password1")

	res, err := e.auth.Login(e.ctx, &LoginInput{Email: "OPS@bank.test", Password: "password1"}, "firefox", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotNil(t, res.User.LastLogin)

	assert.Equal(t, int64(1), e.count(t, &model.Session{}, "user_id = ?", u.ID))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ? AND user_id = ?", model.AuditTypeUserLogin, u.ID))
	assert.Equal(t, int64(1), e.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventUserLogin))

	stored, err := repository.NewUserRepository(e.db).GetByID(e.ctx, nil, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuthService_LoginReusesSessionPerUserAgent(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ops@bank.test", "password1")
	in := func() *LoginInput { return &LoginInput{Email: "ops@bank.test", Password: "password1"} }

	first, err := e.auth.Login(e.ctx, in(), "firefox", "10.0.0.1")
	require.NoError(t, err)
	second, err := e.auth.Login(e.ctx, in(), "firefox", "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	var sessions []*model.Session
	require.NoError(t, e.db.Where("user_id = ?", u.ID).Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "10.0.0.2", sessions[0].IP)

	_, err = e.auth.Login(e.ctx, in(), "safari", "10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.count(t, &model.Session{}, "user_id = ?", u.ID))

	// 旧 token 已失效
	_, err = e.auth.Authenticate(e.ctx, first.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_LoginTruncatesLongUserAgent(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ops@bank.test", "password1")
	in := func() *LoginInput { return &LoginInput{Email: "ops@bank.test", Password: "password1"} }
	ua := strings.Repeat("浏", 250)

	first, err := e.auth.Login(e.ctx, in(), ua, "10.0.0.1")
	require.NoError(t, err)
	second, err := e.auth.Login(e.ctx, in(), ua, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	var sessions []*model.Session
	require.NoError(t, e.db.Where("user_id = ?", u.ID).Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, maxUserAgentLen, utf8.RuneCountInString(sessions[0].UserAgent))
	assert.Equal(t, strings.Repeat("浏", maxUserAgentLen), sessions[0].UserAgent)
}

func TestAuthService_FailedLoginWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ops@bank.test", "password1")
	_, err := e.users.Create(e.ctx, &CreateUserInput{Email: "gone@bank.test", Password: "password1", IsActive: ptr(false)})
	require.NoError(t, err)

	cases := []*LoginInput{
		{Email: "ops@bank.test", Password: "wrong-password"},
		{Email: "nobody@bank.test", Password: "password1"},
		{Email: "gone@bank.test", Password: "password1"},
	}
	for _, in := range cases {
		_, err := e.auth.Login(e.ctx, in, "firefox", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials, in.Email)
	}

	assert.Zero(t, e.count(t, &model.Session{}))
	assert.Zero(t, e.count(t, &model.AuditLog{}))
}

func TestAuthService_LogoutRevokesAndReloginPurges(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	e := newEnvWith(t, client)
	u := e.user(t, "ops@bank.test", "password1")

	res, err := e.auth.Login(e.ctx, &LoginInput{Email: "ops@bank.test", Password: "password1"}, "firefox", "10.0.0.1")
	require.NoError(t, err)

	p, err := e.auth.Authenticate(e.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)
	// 第二次走缓存
	p, err = e.auth.Authenticate(e.ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(e.ctx, p, "10.0.0.1"))
	_, err = e.auth.Authenticate(e.ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeUserLogout))

	_, err = e.auth.Login(e.ctx, &LoginInput{Email: "ops@bank.test", Password: "password1"}, "firefox", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.count(t, &model.Session{}, "user_id = ?", u.ID))
	assert.Zero(t, e.count(t, &model.Session{}, "revoked = ?", true))
}

func TestAuthService_AuthenticateExpiredSession(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ops@bank.test", "password1")

	res, err := e.auth.Login(e.ctx, &LoginInput{Email: "ops@bank.test", Password: "password1"}, "firefox", "10.0.0.1")
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, e.db.Model(&model.Session{}).Where("token = ?", res.Token).Update("last_activity", old).Error)

	_, err = e.auth.Authenticate(e.ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int64(1), e.count(t, &model.Session{}, "revoked = ?", true))

	_, err = e.auth.Authenticate(e.ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_ExpireIdle(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ops@bank.test", "password1")
	_, err := e.auth.Login(e.ctx, &LoginInput{Email: "ops@bank.test", Password: "password1"}, "firefox", "10.0.0.1")
	require.NoError(t, err)

	n, err := e.auth.ExpireIdle(e.ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.auth.ExpireIdle(e.ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthService_SeedDefaults(t *testing.T) {
	e := newEnv(t)
	e.cfg.Auth.AdminEmail = "Admin@Bank.test"
	e.cfg.Auth.AdminPassword = "change-me-now"

	require.NoError(t, e.auth.SeedDefaults(e.ctx))
	require.NoError(t, e.auth.SeedDefaults(e.ctx))

	assert.Equal(t, int64(len(model.DefaultPermissions)), e.count(t, &model.Permission{}))
	assert.Equal(t, int64(1), e.count(t, &model.User{}))

	res, err := e.auth.Login(e.ctx, &LoginInput{Email: "admin@bank.test", Password: "change-me-now"}, "cli", "127.0.0.1")
	require.NoError(t, err)
	p, err := e.auth.Authenticate(e.ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, p.User.HasPermission(model.PermSettingsManage))
}
