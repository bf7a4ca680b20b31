package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore keeps sessions out of the relational database entirely.
// Memcached cannot enumerate keys, so Clear, Len and IDs report
// ErrNotSupported; expiration is delegated to the server's own TTL handling
// plus the envelope watermark checked on Get.
type MemcachedStore struct {
	client *memcache.Client
	opts   Options
}

// memcachedEnvelope carries the expiration watermark alongside the data so
// Touch can refresh it without trusting memcached's lazy TTL alone.
type memcachedEnvelope struct {
	Data       map[string]any `json:"data"`
	Expiration int64          `json:"expiration"`
}

// NewMemcachedStore connects to the given memcached servers. A short
// operation timeout prevents requests from hanging if the cache is down.
func NewMemcachedStore(opts Options, servers ...string) *MemcachedStore {
	client := memcache.New(servers...)
	client.Timeout = 1 * time.Second
	return &MemcachedStore{client: client, opts: opts.normalize()}
}

func (s *MemcachedStore) Get(ctx context.Context, id string) (map[string]any, error) {
	item, err := s.client.Get(id)
	if err == memcache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from memcached: %w", err)
	}

	var env memcachedEnvelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}

	// Memcached TTL eviction is lazy and can be bypassed; enforce the
	// watermark here as well.
	if env.Expiration <= time.Now().Unix() {
		return nil, nil
	}

	if env.Data == nil {
		env.Data = make(map[string]any)
	}
	return env.Data, nil
}

func (s *MemcachedStore) Set(ctx context.Context, id string, data map[string]any) error {
	env := memcachedEnvelope{
		Data:       data,
		Expiration: time.Now().Add(s.opts.Lifetime).Unix(),
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	err = s.client.Set(&memcache.Item{
		Key:        id,
		Value:      blob,
		Expiration: memcachedExpiration(s.opts.Lifetime),
	})
	if err != nil {
		return fmt.Errorf("failed to save session to memcached: %w", err)
	}
	return nil
}

// Touch rereads the envelope and rewrites it with a fresh watermark. The
// read-modify-write is not atomic; a concurrent Set can win, which only
// costs a slightly staler expiration.
func (s *MemcachedStore) Touch(ctx context.Context, id string) error {
	data, err := s.Get(ctx, id)
	if err != nil || data == nil {
		return err
	}
	return s.Set(ctx, id, data)
}

func (s *MemcachedStore) Destroy(ctx context.Context, id string) error {
	err := s.client.Delete(id)
	if err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("failed to destroy session in memcached: %w", err)
	}
	return nil
}

func (s *MemcachedStore) Clear(ctx context.Context) error {
	return ErrNotSupported
}

func (s *MemcachedStore) Len(ctx context.Context) (int, error) {
	return 0, ErrNotSupported
}

func (s *MemcachedStore) IDs(ctx context.Context) ([]string, error) {
	return nil, ErrNotSupported
}

func (s *MemcachedStore) Close() error {
	return nil
}

// memcachedExpiration converts a lifetime to memcached's expiration field.
// Values over 30 days are interpreted by memcached as absolute Unix
// timestamps rather than deltas.
func memcachedExpiration(lifetime time.Duration) int32 {
	const maxDelta = 30 * 24 * time.Hour
	if lifetime > maxDelta {
		return int32(time.Now().Add(lifetime).Unix())
	}
	return int32(lifetime.Seconds())
}
