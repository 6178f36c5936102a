package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAccountStoreRejectsUnknownPurpose(t *testing.T) {
	store := NewAccountStore(nil)
	ctx := context.Background()
	scope := Scope{TenantID: uuid.New(), CompanyID: 1}
	bogus := Purpose("BOGUS")

	_, err := store.Resolve(ctx, nil, scope, bogus)
	assert.ErrorIs(t, err, ErrUnknownPurpose)

	_, err = store.CreateAccount(ctx, scope, NewAccount{Code: "9000", Name: "Misc", Type: Expense, NormalSide: DebitSide, Purpose: &bogus})
	assert.ErrorIs(t, err, ErrUnknownPurpose)

	err = store.AssignPurpose(ctx, scope, 1, bogus)
	assert.ErrorIs(t, err, ErrUnknownPurpose)
}
