// Package cache provides a thin Redis-backed cache and distributed lock
// client shared by the pipeline engine and the embedding client.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a cache lookup finds no entry.
var ErrMiss = errors.New("cache: miss")

// Client wraps a Redis connection for embedding caching and the
// pipeline's per-document processing lock.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis at url and verifies the connection with a
// Ping before returning.
func NewClient(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.NewClient: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache.NewClient: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetEmbedding returns the cached vector for key, or ErrMiss if absent.
func (c *Client) GetEmbedding(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.rdb.Get(ctx, "embedding:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache.GetEmbedding: %w", err)
	}
	return decodeVector(raw), nil
}

// SetEmbedding stores vec under key for ttl.
func (c *Client) SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, "embedding:"+key, encodeVector(vec), ttl).Err(); err != nil {
		return fmt.Errorf("cache.SetEmbedding: %w", err)
	}
	return nil
}

// AcquireLock attempts to take an exclusive processing lock for key,
// reporting whether it was acquired.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, "lock:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache.AcquireLock: %w", err)
	}
	return ok, nil
}

// ReleaseLock drops a lock taken by AcquireLock.
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, "lock:"+key).Err(); err != nil {
		return fmt.Errorf("cache.ReleaseLock: %w", err)
	}
	return nil
}

// SetJSON marshals v as JSON and stores it under key for ttl, for small
// structured values that don't warrant a dedicated encoding.
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache.SetJSON: marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, "json:"+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache.SetJSON: %w", err)
	}
	return nil
}

// GetJSON unmarshals the value stored under key into v, or returns ErrMiss.
func (c *Client) GetJSON(ctx context.Context, key string, v interface{}) error {
	data, err := c.rdb.Get(ctx, "json:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache.GetJSON: %w", err)
	}
	return json.Unmarshal(data, v)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
