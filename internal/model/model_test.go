package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovementDeltas(t *testing.T) {
	dest := int64(7)

	in := &Movement{Type: MovementTypeIn, LocationID: 1, CardTypeID: 2, Quantity: 10}
	assert.Equal(t, []StockDelta{{LocationID: 1, CardTypeID: 2, Delta: 10}}, in.Deltas())

	out := &Movement{Type: MovementTypeOut, LocationID: 1, CardTypeID: 2, Quantity: 4}
	assert.Equal(t, []StockDelta{{LocationID: 1, CardTypeID: 2, Delta: -4}}, out.Deltas())

	transfer := &Movement{Type: MovementTypeTransfer, LocationID: 1, DestLocationID: &dest, CardTypeID: 2, Quantity: 3}
	assert.Equal(t, []StockDelta{
		{LocationID: 1, CardTypeID: 2, Delta: -3},
		{LocationID: 7, CardTypeID: 2, Delta: 3},
	}, transfer.Deltas())

	broken := &Movement{Type: MovementTypeTransfer, LocationID: 1, CardTypeID: 2, Quantity: 3}
	assert.Nil(t, broken.Deltas())

	assert.Nil(t, (&Movement{Type: "adjust"}).Deltas())
}

func TestStockIsBelowThreshold(t *testing.T) {
	assert.False(t, (&Stock{Quantity: 0, AlertThreshold: 0}).IsBelowThreshold())
	assert.True(t, (&Stock{Quantity: 5, AlertThreshold: 5}).IsBelowThreshold())
	assert.False(t, (&Stock{Quantity: 6, AlertThreshold: 5}).IsBelowThreshold())
}

func TestUserHasPermission(t *testing.T) {
	assert.False(t, (&User{}).HasPermission("banks:read"))

	admin := &User{Role: &Role{Name: RoleAdmin}}
	assert.True(t, admin.HasPermission("anything"))

	operator := &User{Role: &Role{Name: "operator", Permissions: []Permission{{Name: "stocks:read"}}}}
	assert.True(t, operator.HasPermission("stocks:read"))
	assert.False(t, operator.HasPermission("stocks:write"))
}
