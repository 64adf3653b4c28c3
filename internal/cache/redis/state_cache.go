package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// stateTTL bounds staleness if an invalidation is ever missed. State is
// recomputed on every mutation, so the TTL is a backstop, not the refresh
// mechanism.
const stateTTL = 24 * time.Hour

// StateCache implements domain.StateCache using Redis string keys holding the
// JSON-encoded derived state at "state:{positionID}".
type StateCache struct {
	rdb *redis.Client
}

// NewStateCache creates a StateCache backed by the given Client.
func NewStateCache(c *Client) *StateCache {
	return &StateCache{rdb: c.Underlying()}
}

func stateKey(positionID string) string {
	return "state:" + positionID
}

// Set stores the derived state for a position.
func (sc *StateCache) Set(ctx context.Context, positionID string, state domain.PositionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: encode state %s: %w", positionID, err)
	}
	if err := sc.rdb.Set(ctx, stateKey(positionID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("redis: set state %s: %w", positionID, err)
	}
	return nil
}

// Get retrieves the cached state for a position. It returns
// domain.ErrNotFound when the key does not exist.
func (sc *StateCache) Get(ctx context.Context, positionID string) (domain.PositionState, error) {
	data, err := sc.rdb.Get(ctx, stateKey(positionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PositionState{}, domain.ErrNotFound
		}
		return domain.PositionState{}, fmt.Errorf("redis: get state %s: %w", positionID, err)
	}

	var state domain.PositionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.PositionState{}, fmt.Errorf("redis: decode state %s: %w", positionID, err)
	}
	return state, nil
}

// Invalidate removes the cached state for a position.
func (sc *StateCache) Invalidate(ctx context.Context, positionID string) error {
	if err := sc.rdb.Del(ctx, stateKey(positionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate state %s: %w", positionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StateCache = (*StateCache)(nil)
