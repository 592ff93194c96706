// Package cache keeps JSON encoded responses of the remote service in
// Postgres, keyed by a string that callers build from the request.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/database/gensql"
)

type Cacher interface {
	// Get reports whether key was found, not expired, and decoded into into.
	Get(ctx context.Context, key string, into any) bool

	// Set encodes val and stores it under key. Failures are logged, a cache
	// that can not be written to behaves like an empty one.
	Set(ctx context.Context, key string, val any)

	// Invalidate removes every entry whose key starts with prefix.
	Invalidate(ctx context.Context, prefix string)

	Stats() Statistics
}

type Queries interface {
	GetCachedResponse(ctx context.Context, endpoint string) (gensql.GetCachedResponseRow, error)
	SetCachedResponse(ctx context.Context, arg gensql.SetCachedResponseParams) error
	DeleteCachedResponses(ctx context.Context, prefix string) (int64, error)
}

type Statistics struct {
	TotalRequests int
	TotalHits     int
	TotalMisses   int
}

type Client struct {
	expiresAfter time.Duration
	queries      Queries
	log          zerolog.Logger
	now          func() time.Time

	requests atomic.Int32
	hits     atomic.Int32
}

var _ Cacher = &Client{}

func (c *Client) Get(ctx context.Context, key string, into any) bool {
	c.requests.Add(1)

	res, err := c.queries.GetCachedResponse(ctx, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.log.Info().Err(err).Str("key", key).Msg("fetching cached value")
		}

		return false
	}

	if c.now().Sub(res.CreatedAt) > c.expiresAfter {
		c.log.Debug().Str("key", key).Msg("cached value expired")
		return false
	}

	err = json.Unmarshal(res.ResponseBody, into)
	if err != nil {
		c.log.Info().Err(err).Str("key", key).Msg("decoding cached value")
		return false
	}

	c.hits.Add(1)

	return true
}

func (c *Client) Set(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		c.log.Info().Err(err).Str("key", key).Msg("encoding value for cache")
		return
	}

	err = c.queries.SetCachedResponse(ctx, gensql.SetCachedResponseParams{
		Endpoint:     key,
		ResponseBody: data,
		CreatedAt:    c.now().UTC(),
	})
	if err != nil {
		c.log.Info().Err(err).Str("key", key).Msg("updating cache")
	}
}

func (c *Client) Invalidate(ctx context.Context, prefix string) {
	n, err := c.queries.DeleteCachedResponses(ctx, prefix)
	if err != nil {
		c.log.Info().Err(err).Str("prefix", prefix).Msg("invalidating cache")
		return
	}

	c.log.Debug().Int64("entries", n).Str("prefix", prefix).Msg("invalidated cache")
}

func (c *Client) Stats() Statistics {
	requests := c.requests.Load()
	hits := c.hits.Load()

	return Statistics{
		TotalRequests: int(requests),
		TotalHits:     int(hits),
		TotalMisses:   int(requests - hits),
	}
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(expiresAfter time.Duration, queries Queries, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		expiresAfter: expiresAfter,
		queries:      queries,
		log:          log,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
