package service

import (
	"sync"
	"testing"

	"cardstock/internal/model"
	"cardstock/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementService_InOutTransfer(t *testing.T) {
	e := newEnv(t)
	vault, branch, cardType := e.seed(t, 0, 0)

	in, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 100, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, in.ReferenceNumber)
	assert.Equal(t, int64(100), e.quantity(t, vault.ID, cardType.ID))

	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "out", Quantity: 30, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(70), e.quantity(t, vault.ID, cardType.ID))

	tr, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{
		Type: "transfer", Quantity: 20, LocationID: vault.ID, DestLocationID: &branch.ID, CardTypeID: cardType.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, tr.DestLocation)
	assert.Equal(t, "Branch", tr.DestLocation.Name)
	assert.Equal(t, int64(50), e.quantity(t, vault.ID, cardType.ID))
	assert.Equal(t, int64(20), e.quantity(t, branch.ID, cardType.ID))

	assert.Equal(t, int64(3), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeMovementCreated))
	assert.Equal(t, int64(3), e.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventMovementCreated))
}

func TestMovementService_InsufficientStockWritesNothing(t *testing.T) {
	e := newEnv(t)
	vault, branch, cardType := e.seed(t, 0, 0)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "out", Quantity: 1, LocationID: vault.ID, CardTypeID: cardType.ID})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Fields[0].Field)

	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 10, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{
		Type: "transfer", Quantity: 11, LocationID: vault.ID, DestLocationID: &branch.ID, CardTypeID: cardType.ID,
	})
	require.ErrorAs(t, err, &ve)

	assert.Equal(t, int64(1), e.count(t, &model.Movement{}))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}))
	assert.Equal(t, int64(10), e.quantity(t, vault.ID, cardType.ID))
	assert.Equal(t, int64(0), e.quantity(t, branch.ID, cardType.ID))
}

func TestMovementService_ShapeRules(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	cases := []struct {
		name   string
		in     *CreateMovementInput
		fields []string
	}{
		{"transfer without destination", &CreateMovementInput{Type: "transfer", Quantity: 1, LocationID: vault.ID, CardTypeID: cardType.ID}, []string{"destLocationId"}},
		{"transfer to itself", &CreateMovementInput{Type: "transfer", Quantity: 1, LocationID: vault.ID, DestLocationID: &vault.ID, CardTypeID: cardType.ID}, []string{"destLocationId"}},
		{"in with destination", &CreateMovementInput{Type: "in", Quantity: 1, LocationID: vault.ID, DestLocationID: ptr(int64(99)), CardTypeID: cardType.ID}, []string{"destLocationId"}},
		{"unknown type", &CreateMovementInput{Type: "loss", Quantity: 1, LocationID: vault.ID, CardTypeID: cardType.ID}, []string{"type"}},
		{"zero quantity", &CreateMovementInput{Type: "in", LocationID: vault.ID, CardTypeID: cardType.ID}, []string{"quantity"}},
		{"transfer with zero quantity and no destination", &CreateMovementInput{Type: "transfer", LocationID: vault.ID, CardTypeID: cardType.ID}, []string{"quantity", "destLocationId"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.movements.Create(e.ctx, Actor{}, tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			got := make([]string, 0, len(ve.Fields))
			for _, f := range ve.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tc.fields, got)
		})
	}

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 1, LocationID: 999, CardTypeID: cardType.ID})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "location", nf.Resource)
}

func TestMovementService_Capacity(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 100, 0)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 80, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 30, LocationID: vault.ID, CardTypeID: cardType.ID})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, int64(80), e.quantity(t, vault.ID, cardType.ID))
}

func TestMovementService_DuplicateReference(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	in := CreateMovementInput{Type: "in", Quantity: 5, LocationID: vault.ID, CardTypeID: cardType.ID, ReferenceNumber: "REF-1"}
	_, err := e.movements.Create(e.ctx, Actor{}, &in)
	require.NoError(t, err)

	again := in
	_, err = e.movements.Create(e.ctx, Actor{}, &again)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(5), e.quantity(t, vault.ID, cardType.ID))
}

func TestMovementService_LowStockAlert(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 10)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 50, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	assert.Zero(t, e.count(t, &model.Notification{}))

	_, err = e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "out", Quantity: 45, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.count(t, &model.Notification{}, "type = ?", model.NotificationTypeStockAlert))
	assert.Equal(t, int64(1), e.count(t, &model.OutboxMessage{}, "event_type = ?", model.EventStockAlert))
}

func TestMovementService_DeleteReversesStock(t *testing.T) {
	e := newEnv(t)
	vault, branch, cardType := e.seed(t, 0, 0)

	in, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 50, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)
	tr, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{
		Type: "transfer", Quantity: 40, LocationID: vault.ID, DestLocationID: &branch.ID, CardTypeID: cardType.ID,
	})
	require.NoError(t, err)

	// 撤销入库会让 vault 变成负数
	var ve *ValidationError
	require.ErrorAs(t, e.movements.Delete(e.ctx, Actor{}, in.ID), &ve)
	assert.Equal(t, int64(10), e.quantity(t, vault.ID, cardType.ID))

	require.NoError(t, e.movements.Delete(e.ctx, Actor{}, tr.ID))
	assert.Equal(t, int64(50), e.quantity(t, vault.ID, cardType.ID))
	assert.Equal(t, int64(0), e.quantity(t, branch.ID, cardType.ID))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeMovementDeleted))

	var nf *NotFoundError
	require.ErrorAs(t, e.movements.Delete(e.ctx, Actor{}, tr.ID), &nf)
}

func TestMovementService_UpdateOnlyReasonAndAttachments(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)

	m, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 5, LocationID: vault.ID, CardTypeID: cardType.ID, Reason: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, m.Attachments)

	updated, err := e.movements.Update(e.ctx, m.ID, &UpdateMovementInput{Attachments: &[]string{"bl-001.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, "delivery", updated.Reason)
	assert.Equal(t, []string{"bl-001.pdf"}, updated.Attachments)
	assert.Equal(t, int64(5), updated.Quantity)
}

func TestMovementService_ConcurrentOutWithLock(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	e := newEnvWith(t, client)
	vault, _, cardType := e.seed(t, 0, 0)

	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 5, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "out", Quantity: 1, LocationID: vault.ID, CardTypeID: cardType.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, int64(0), e.quantity(t, vault.ID, cardType.ID))
	assert.Empty(t, mr.Keys())
}
