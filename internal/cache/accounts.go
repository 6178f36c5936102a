package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"urutiq-ledger/internal/core"
)

// Accounts is the chart-of-accounts surface the cache decorates.
type Accounts interface {
	core.AccountDirectory
	core.AccountAdmin
}

// AccountCache caches purpose resolutions in Redis. Only found accounts are
// cached; a missing purpose always goes back to the store. Redis failures are
// logged and the store is used directly.
type AccountCache struct {
	next Accounts
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func NewAccountCache(next Accounts, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *AccountCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

var _ Accounts = (*AccountCache)(nil)

func purposeKey(scope core.Scope, purpose core.Purpose) string {
	return fmt.Sprintf("acct:purpose:%s:%d:%s", scope.TenantID, scope.CompanyID, purpose)
}

func (c *AccountCache) Resolve(ctx context.Context, q core.Querier, scope core.Scope, purpose core.Purpose) (core.Resolution, error) {
	key := purposeKey(scope, purpose)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var a core.Account
		if jsonErr := json.Unmarshal([]byte(cached), &a); jsonErr == nil && a.TenantID == scope.TenantID && a.CompanyID == scope.CompanyID {
			return core.Found(a), nil
		}
		c.log.Warn("discarding bad account cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("account cache unavailable", zap.String("key", key), zap.Error(err))
		return c.next.Resolve(ctx, q, scope, purpose)
	}

	res, err := c.next.Resolve(ctx, q, scope, purpose)
	if err != nil || !res.IsFound() {
		return res, err
	}
	payload, err := json.Marshal(res.Account)
	if err != nil {
		return res, nil
	}
	if err := c.rdb.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache account", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

// Invalidate drops the cached resolution of purpose.
func (c *AccountCache) Invalidate(ctx context.Context, scope core.Scope, purpose core.Purpose) {
	if err := c.rdb.Del(ctx, purposeKey(scope, purpose)).Err(); err != nil {
		c.log.Warn("failed to invalidate account cache", zap.String("purpose", string(purpose)), zap.Error(err))
	}
}

func (c *AccountCache) CreateAccount(ctx context.Context, scope core.Scope, in core.NewAccount) (*core.Account, error) {
	return c.next.CreateAccount(ctx, scope, in)
}

// AssignPurpose moves a purpose tag and drops both the new tag and the tag
// the account held before.
func (c *AccountCache) AssignPurpose(ctx context.Context, scope core.Scope, accountID int64, purpose core.Purpose) error {
	before, err := c.next.GetAccount(ctx, nil, scope, accountID)
	if err != nil {
		return err
	}
	if err := c.next.AssignPurpose(ctx, scope, accountID, purpose); err != nil {
		return err
	}
	c.Invalidate(ctx, scope, purpose)
	if before.Purpose != nil && *before.Purpose != purpose {
		c.Invalidate(ctx, scope, *before.Purpose)
	}
	return nil
}

func (c *AccountCache) ListAccounts(ctx context.Context, scope core.Scope) ([]core.Account, error) {
	return c.next.ListAccounts(ctx, scope)
}

func (c *AccountCache) GetAccount(ctx context.Context, q core.Querier, scope core.Scope, accountID int64) (*core.Account, error) {
	return c.next.GetAccount(ctx, q, scope, accountID)
}
