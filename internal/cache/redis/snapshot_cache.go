package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// snapshotTTL bounds how stale a cached snapshot can get if the publishing
// process dies between refreshes.
const snapshotTTL = 5 * time.Minute

// SnapshotCache implements domain.SnapshotCache, sharing the latest balance
// snapshot across processes. Amounts are serialized as decimal strings:
// JSON numbers cannot carry uint256 values.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(owner string) string {
	return "futarchy:snapshot:" + owner
}

type cachedFamily struct {
	Wallet     string `json:"wallet"`
	YesAddress string `json:"yesAddress"`
	NoAddress  string `json:"noAddress"`
	YesAmount  string `json:"yesAmount"`
	NoAmount   string `json:"noAmount"`
}

type cachedSnapshot struct {
	Owner    string       `json:"owner"`
	TakenAt  time.Time    `json:"takenAt"`
	Currency cachedFamily `json:"currency"`
	Company  cachedFamily `json:"company"`
}

// SetSnapshot stores the snapshot under its owner's key.
func (c *SnapshotCache) SetSnapshot(ctx context.Context, snap *domain.BalanceSnapshot) error {
	data, err := json.Marshal(cachedSnapshot{
		Owner:    snap.Owner,
		TakenAt:  snap.TakenAt,
		Currency: encodeFamily(snap.Currency),
		Company:  encodeFamily(snap.Company),
	})
	if err != nil {
		return fmt.Errorf("redis: encode snapshot for %s: %w", snap.Owner, err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.Owner), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot for %s: %w", snap.Owner, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot for an owner, or ErrNotFound when
// none is cached (or the cached entry expired).
func (c *SnapshotCache) GetSnapshot(ctx context.Context, owner string) (*domain.BalanceSnapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(owner)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot for %s: %w", owner, err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot for %s: %w", owner, err)
	}

	snap := &domain.BalanceSnapshot{Owner: cached.Owner, TakenAt: cached.TakenAt}
	if snap.Currency, err = decodeFamily(cached.Currency); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot for %s: %w", owner, err)
	}
	if snap.Company, err = decodeFamily(cached.Company); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot for %s: %w", owner, err)
	}
	return snap, nil
}

func encodeFamily(b domain.FamilyBalance) cachedFamily {
	str := func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		return v.String()
	}
	return cachedFamily{
		Wallet:     str(b.Wallet),
		YesAddress: b.Positions.YesAddress,
		NoAddress:  b.Positions.NoAddress,
		YesAmount:  str(b.Positions.YesAmount),
		NoAmount:   str(b.Positions.NoAmount),
	}
}

func decodeFamily(c cachedFamily) (domain.FamilyBalance, error) {
	parse := func(s string) (*big.Int, error) {
		if s == "" {
			return new(big.Int), nil
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("bad amount %q", s)
		}
		return v, nil
	}

	wallet, err := parse(c.Wallet)
	if err != nil {
		return domain.FamilyBalance{}, err
	}
	yes, err := parse(c.YesAmount)
	if err != nil {
		return domain.FamilyBalance{}, err
	}
	no, err := parse(c.NoAmount)
	if err != nil {
		return domain.FamilyBalance{}, err
	}
	return domain.FamilyBalance{
		Wallet: wallet,
		Positions: domain.PositionPair{
			YesAddress: c.YesAddress,
			NoAddress:  c.NoAddress,
			YesAmount:  yes,
			NoAmount:   no,
		},
	}, nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
