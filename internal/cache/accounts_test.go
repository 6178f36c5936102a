package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urutiq-ledger/internal/core"
)

type fakeAccounts struct {
	accounts     map[core.Purpose]core.Account
	byID         map[int64]core.Account
	resolveCalls int
	assigned     []core.Purpose
}

func (f *fakeAccounts) Resolve(_ context.Context, _ core.Querier, _ core.Scope, purpose core.Purpose) (core.Resolution, error) {
	f.resolveCalls++
	if a, ok := f.accounts[purpose]; ok {
		return core.Found(a), nil
	}
	return core.MissingPurpose(purpose), nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, _ core.Scope, _ core.NewAccount) (*core.Account, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAccounts) AssignPurpose(_ context.Context, _ core.Scope, _ int64, purpose core.Purpose) error {
	f.assigned = append(f.assigned, purpose)
	return nil
}

func (f *fakeAccounts) ListAccounts(_ context.Context, _ core.Scope) ([]core.Account, error) {
	return nil, nil
}

func (f *fakeAccounts) GetAccount(_ context.Context, _ core.Querier, _ core.Scope, id int64) (*core.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return &a, nil
}

func testScope() core.Scope {
	return core.Scope{TenantID: uuid.MustParse("7b0c7a52-0f6a-4a53-9c57-5c1f0b4a2d11"), CompanyID: 42}
}

func arAccount(scope core.Scope) core.Account {
	p := core.PurposeAR
	return core.Account{ID: 7, TenantID: scope.TenantID, CompanyID: scope.CompanyID, Code: "1100", Name: "Receivables",
		Type: core.Asset, NormalSide: core.DebitSide, Purpose: &p}
}

func TestResolve_MissThenStore(t *testing.T) {
	scope := testScope()
	acct := arAccount(scope)
	payload, err := json.Marshal(acct)
	require.NoError(t, err)

	rdb, mock := redismock.NewClientMock()
	key := purposeKey(scope, core.PurposeAR)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, string(payload), 5*time.Minute).SetVal("OK")

	next := &fakeAccounts{accounts: map[core.Purpose]core.Account{core.PurposeAR: acct}}
	c := NewAccountCache(next, rdb, 5*time.Minute, nil)

	res, err := c.Resolve(context.Background(), nil, scope, core.PurposeAR)
	require.NoError(t, err)
	assert.True(t, res.IsFound())
	assert.Equal(t, int64(7), res.Account.ID)
	assert.Equal(t, 1, next.resolveCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_HitSkipsStore(t *testing.T) {
	scope := testScope()
	acct := arAccount(scope)
	payload, err := json.Marshal(acct)
	require.NoError(t, err)

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(purposeKey(scope, core.PurposeAR)).SetVal(string(payload))

	next := &fakeAccounts{}
	c := NewAccountCache(next, rdb, time.Minute, nil)

	res, err := c.Resolve(context.Background(), nil, scope, core.PurposeAR)
	require.NoError(t, err)
	assert.True(t, res.IsFound())
	assert.Equal(t, "1100", res.Account.Code)
	assert.Equal(t, 0, next.resolveCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_MissingIsNotCached(t *testing.T) {
	scope := testScope()
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(purposeKey(scope, core.PurposeCOGS)).RedisNil()

	c := NewAccountCache(&fakeAccounts{}, rdb, time.Minute, nil)

	res, err := c.Resolve(context.Background(), nil, scope, core.PurposeCOGS)
	require.NoError(t, err)
	assert.False(t, res.IsFound())
	assert.Equal(t, core.PurposeCOGS, res.Missing)

	_, err = res.Require(scope.CompanyID)
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_RedisDownFallsBackToStore(t *testing.T) {
	scope := testScope()
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(purposeKey(scope, core.PurposeAR)).SetErr(errors.New("connection refused"))

	next := &fakeAccounts{accounts: map[core.Purpose]core.Account{core.PurposeAR: arAccount(scope)}}
	c := NewAccountCache(next, rdb, time.Minute, nil)

	res, err := c.Resolve(context.Background(), nil, scope, core.PurposeAR)
	require.NoError(t, err)
	assert.True(t, res.IsFound())
	assert.Equal(t, 1, next.resolveCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPurpose_InvalidatesOldAndNewTags(t *testing.T) {
	scope := testScope()
	acct := arAccount(scope)
	rdb, mock := redismock.NewClientMock()
	mock.ExpectDel(purposeKey(scope, core.PurposeCash)).SetVal(1)
	mock.ExpectDel(purposeKey(scope, core.PurposeAR)).SetVal(1)

	next := &fakeAccounts{byID: map[int64]core.Account{acct.ID: acct}}
	c := NewAccountCache(next, rdb, time.Minute, nil)

	require.NoError(t, c.AssignPurpose(context.Background(), scope, acct.ID, core.PurposeCash))
	assert.Equal(t, []core.Purpose{core.PurposeCash}, next.assigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
