package service

import (
	"testing"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankService_CreateValidatesAllFields(t *testing.T) {
	e := newEnv(t)

	_, err := e.banks.Create(e.ctx, &CreateBankInput{Name: "  "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["bankCode"])
	assert.Zero(t, e.count(t, &model.Bank{}))
}

func TestBankService_DuplicateCodeIsConflict(t *testing.T) {
	e := newEnv(t)

	_, err := e.banks.Create(e.ctx, &CreateBankInput{Name: "A", BankCode: "B1"})
	require.NoError(t, err)
	_, err = e.banks.Create(e.ctx, &CreateBankInput{Name: "B", BankCode: "B1"})

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bankCode", ce.Field)
	assert.Equal(t, int64(1), e.count(t, &model.Bank{}))
}

func TestBankService_UpdateAndDelete(t *testing.T) {
	e := newEnv(t)

	var nf *NotFoundError
	_, err := e.banks.Update(e.ctx, 42, &UpdateBankInput{Name: ptr("X")})
	require.ErrorAs(t, err, &nf)
	require.ErrorAs(t, e.banks.Delete(e.ctx, 42), &nf)

	bank, err := e.banks.Create(e.ctx, &CreateBankInput{Name: "A", BankCode: "B1"})
	require.NoError(t, err)

	updated, err := e.banks.Update(e.ctx, bank.ID, &UpdateBankInput{Address: ptr("Rabat")})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Name)
	assert.Equal(t, "Rabat", updated.Address)

	var ve *ValidationError
	_, err = e.banks.Update(e.ctx, bank.ID, &UpdateBankInput{Name: ptr(" ")})
	require.ErrorAs(t, err, &ve)

	require.NoError(t, e.banks.Delete(e.ctx, bank.ID))
	_, err = e.banks.Get(e.ctx, bank.ID)
	require.ErrorAs(t, err, &nf)
}

func TestBankService_DeleteInUse(t *testing.T) {
	e := newEnv(t)
	vault, _, _ := e.seed(t, 0, 0)

	var ce *ConflictError
	require.ErrorAs(t, e.banks.Delete(e.ctx, vault.BankID), &ce)
}

func TestLocationService_UnknownBank(t *testing.T) {
	e := newEnv(t)

	_, err := e.locations.Create(e.ctx, &CreateLocationInput{Name: "Vault", BankID: 7})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "bank", nf.Resource)
}

func TestLocationService_CreateExpandsBank(t *testing.T) {
	e := newEnv(t)
	vault, _, _ := e.seed(t, 100, 0)

	require.NotNil(t, vault.Bank)
	assert.Equal(t, "BA01", vault.Bank.BankCode)

	locations, err := e.locations.List(e.ctx, vault.BankID)
	require.NoError(t, err)
	assert.Len(t, locations, 2)
}

func TestCardTypeService_SubtypeChain(t *testing.T) {
	e := newEnv(t)
	_, _, cardType := e.seed(t, 0, 0)

	_, err := e.cardTypes.Create(e.ctx, &CreateCardTypeInput{Name: "X", BankID: cardType.BankID, SubSubType: "gold"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "subSubType", ve.Fields[0].Field)

	updated, err := e.cardTypes.Update(e.ctx, cardType.ID, &UpdateCardTypeInput{Type: ptr("debit"), SubType: ptr("visa")})
	require.NoError(t, err)
	assert.Equal(t, "visa", updated.SubType)
}

func TestStockService_AdjustWritesAudit(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 10)

	stock, err := e.stocks.Create(e.ctx, Actor{IP: "10.0.0.1"}, &CreateStockInput{LocationID: vault.ID, CardTypeID: cardType.ID, Quantity: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock.AlertThreshold)

	_, err = e.stocks.Create(e.ctx, Actor{}, &CreateStockInput{LocationID: vault.ID, CardTypeID: cardType.ID})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	updated, err := e.stocks.Update(e.ctx, Actor{}, stock.ID, &UpdateStockInput{Quantity: ptr(int64(5)), Reason: ptr("inventory")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.Quantity)

	assert.Equal(t, int64(2), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeStockAdjusted))
	assert.Equal(t, int64(1), e.count(t, &model.Notification{}, "type = ?", model.NotificationTypeStockAlert))
}

func TestStockService_CapacityOnCreate(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 10, 0)

	_, err := e.stocks.Create(e.ctx, Actor{}, &CreateStockInput{LocationID: vault.ID, CardTypeID: cardType.ID, Quantity: 11})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, e.count(t, &model.Stock{}))
}

func TestRoleService_PermissionsAndDelete(t *testing.T) {
	e := newEnv(t)

	p1, err := e.roles.CreatePermission(e.ctx, &CreatePermissionInput{Name: "banks:read"})
	require.NoError(t, err)
	p2, err := e.roles.CreatePermission(e.ctx, &CreatePermissionInput{Name: "banks:write"})
	require.NoError(t, err)

	_, err = e.roles.Create(e.ctx, &CreateRoleInput{Name: "clerk", PermissionIDs: []int64{p1.ID, 999}})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, e.count(t, &model.Role{}))

	role, err := e.roles.Create(e.ctx, &CreateRoleInput{Name: "clerk", PermissionIDs: []int64{p1.ID}})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)

	role, err = e.roles.Update(e.ctx, role.ID, &UpdateRoleInput{PermissionIDs: &[]int64{p1.ID, p2.ID}})
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 2)

	_, err = e.users.Create(e.ctx, &CreateUserInput{Email: "clerk@bank.test", Password: "password1", RoleID: &role.ID})
	require.NoError(t, err)

	var ce *ConflictError
	require.ErrorAs(t, e.roles.Delete(e.ctx, role.ID), &ce)
}

func TestUserService_CreateHidesPasswordAndRejectsDuplicate(t *testing.T) {
	e := newEnv(t)

	user, err := e.users.Create(e.ctx, &CreateUserInput{Email: "Ops@Bank.test", Password: "password1", IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "ops@bank.test", user.Email)
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "password1", user.PasswordHash)

	_, err = e.users.Create(e.ctx, &CreateUserInput{Email: "ops@bank.test", Password: "password2"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)

	_, err = e.users.Create(e.ctx, &CreateUserInput{Email: "not-an-email", Password: "short"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)
}

func TestStockService_DeleteKeepsMovementHistoryConsistent(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	movement, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 10, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	stock, err := repository.NewStockRepository(e.db).GetByPair(e.ctx, nil, vault.ID, cardType.ID)
	require.NoError(t, err)
	audits := e.count(t, &model.AuditLog{})

	var ce *ConflictError
	require.ErrorAs(t, e.stocks.Delete(e.ctx, Actor{}, stock.ID), &ce)
	assert.Equal(t, int64(10), e.quantity(t, vault.ID, cardType.ID))
	assert.Equal(t, audits, e.count(t, &model.AuditLog{}))

	// 回滚变动后数量为 0，但变动历史已清空才允许删除
	require.NoError(t, e.movements.Delete(e.ctx, Actor{}, movement.ID))
	assert.Equal(t, int64(0), e.quantity(t, vault.ID, cardType.ID))

	require.NoError(t, e.stocks.Delete(e.ctx, Actor{IP: "10.0.0.1"}, stock.ID))
	assert.Equal(t, int64(0), e.count(t, &model.Stock{}))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeStockDeleted))

	var nf *NotFoundError
	require.ErrorAs(t, e.stocks.Delete(e.ctx, Actor{}, stock.ID), &nf)
}

func TestStockService_DeleteRejectsZeroStockWithMovements(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 3, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "out", Quantity: 3, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	stock, err := repository.NewStockRepository(e.db).GetByPair(e.ctx, nil, vault.ID, cardType.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), stock.Quantity)

	var ce *ConflictError
	require.ErrorAs(t, e.stocks.Delete(e.ctx, Actor{}, stock.ID), &ce)
	assert.Equal(t, int64(1), e.count(t, &model.Stock{}))
}

func TestLocationService_CapacityBelowCurrentStock(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 40, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	_, err = e.locations.Update(e.ctx, vault.ID, &UpdateLocationInput{MaxCapacity: ptr(int64(30))})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "maxCapacity", ve.Fields[0].Field)

	unchanged, err := e.locations.Get(e.ctx, vault.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unchanged.MaxCapacity)

	updated, err := e.locations.Update(e.ctx, vault.ID, &UpdateLocationInput{MaxCapacity: ptr(int64(40))})
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.MaxCapacity)

	updated, err = e.locations.Update(e.ctx, vault.ID, &UpdateLocationInput{MaxCapacity: ptr(int64(0))})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.MaxCapacity)
}
