package shift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "pos"

// RedisStore keeps one JSON document per shift, an id set and a pointer to the
// open shift.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs the store. An empty prefix defaults to "pos".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) shiftKey(id string) string {
	return strings.Join([]string{r.prefix, "shift", id}, ":")
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":shifts"
}

func (r *RedisStore) openKey() string {
	return r.prefix + ":shift:open"
}

// List returns every shift, newest first.
func (r *RedisStore) List(ctx context.Context) ([]Shift, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("shift: list ids: %w", err)
	}
	if len(ids) == 0 {
		return []Shift{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.shiftKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("shift: load shifts: %w", err)
	}
	out := make([]Shift, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var s Shift
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("shift: decode %s: %w", ids[i], err)
		}
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

// Get loads a shift by id.
func (r *RedisStore) Get(ctx context.Context, id string) (Shift, error) {
	raw, err := r.client.Get(ctx, r.shiftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Shift{}, ErrShiftNotFound
	}
	if err != nil {
		return Shift{}, err
	}
	var s Shift
	if err := json.Unmarshal(raw, &s); err != nil {
		return Shift{}, fmt.Errorf("shift: decode %s: %w", id, err)
	}
	return s, nil
}

// CurrentOpen follows the open pointer.
func (r *RedisStore) CurrentOpen(ctx context.Context) (*Shift, error) {
	id, err := r.client.Get(ctx, r.openKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := r.Get(ctx, id)
	if errors.Is(err, ErrShiftNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.IsOpen() {
		return nil, nil
	}
	return &s, nil
}

// maxPutAttempts bounds WATCH retries. A retry re-reads the record, so a write
// that lost to a close fails with ErrAlreadyClosed.
const maxPutAttempts = 3

// Put stores s under an optimistic WATCH on the record and the open pointer.
func (r *RedisStore) Put(ctx context.Context, s Shift) error {
	key := r.shiftKey(s.ID)
	openKey := r.openKey()
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("shift: encode %s: %w", s.ID, err)
	}
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var existing Shift
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("shift: decode %s: %w", s.ID, err)
			}
			if !existing.IsOpen() {
				return ErrAlreadyClosed
			}
		}
		openID, err := tx.Get(ctx, openKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if s.IsOpen() && openID != "" && openID != s.ID {
			return ErrShiftAlreadyOpen
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, r.indexKey(), s.ID)
			if s.IsOpen() {
				pipe.Set(ctx, openKey, s.ID, 0)
			} else if openID == s.ID {
				pipe.Del(ctx, openKey)
			}
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		err = r.client.Watch(ctx, txf, key, openKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("shift: concurrent write on %s: %w", s.ID, err)
}
