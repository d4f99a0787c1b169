package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// ErrCacheMiss is returned when no balance is cached for the account.
var ErrCacheMiss = errors.New("balance not cached")

// BalanceCacheRepository caches committed balances in Redis
type BalanceCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached balances
}

// NewBalanceCacheRepository creates a new repository instance with the given TTL
func NewBalanceCacheRepository(client *redis.Client, expiration time.Duration) *BalanceCacheRepository {
	return &BalanceCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func balanceKey(accountID uuid.UUID) string {
	return fmt.Sprintf("balance:%s", accountID)
}

// storeSettled writes "<wager id>:<balance>" unless the key already holds a
// balance from the same or a later wager.
var storeSettled = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local v = tonumber(string.match(cur, '^(%d+):'))
	if v and v >= tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetBalance returns the cached balance or ErrCacheMiss.
func (r *BalanceCacheRepository) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	key := balanceKey(accountID)

	val, err := r.client.Get(ctx, key).Result()
	logger.Log.Infow("cache get", "key", key, "result", val, "error", err)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, ErrCacheMiss
		}
		return decimal.Zero, err
	}

	_, amount, ok := strings.Cut(val, ":")
	if !ok {
		return decimal.Zero, fmt.Errorf("corrupt cached balance for %s: %q", key, val)
	}
	balance, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt cached balance for %s: %w", key, err)
	}
	return balance, nil
}

// FillBalance caches a balance read from the database unless an entry already exists.
// The entry carries wager id 0, so any settled balance replaces it.
func (r *BalanceCacheRepository) FillBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	key := balanceKey(accountID)
	stored, err := r.client.SetNX(ctx, key, "0:"+balance.String(), r.exp).Result()

	logger.Log.Infow("cache fill", "key", key, "value", balance.String(), "stored", stored, "error", err)

	return err
}

// StoreSettledBalance caches the balance produced by wagerID. An entry written
// for a later wager is kept.
func (r *BalanceCacheRepository) StoreSettledBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal, wagerID int64) error {
	key := balanceKey(accountID)
	stored, err := storeSettled.Run(ctx, r.client, []string{key},
		wagerID, balance.String(), r.exp.Milliseconds()).Int()

	logger.Log.Infow("cache store settled", "key", key, "wager_id", wagerID, "value", balance.String(), "stored", stored == 1, "error", err)

	return err
}
