// Package sessioncleaner periodically removes expired login sessions and
// verification sessions that have been left idle.
package sessioncleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type ExpiredSessionDeleter interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type IdleSessionEvictor interface {
	EvictIdle(ctx context.Context) (int, error)
}

type Cleaner struct {
	sessions     ExpiredSessionDeleter
	verification IdleSessionEvictor
	log          zerolog.Logger
}

func New(sessions ExpiredSessionDeleter, verification IdleSessionEvictor, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		sessions:     sessions,
		verification: verification,
		log:          log,
	}
}

func (c *Cleaner) Run(ctx context.Context, startupDelay, frequency time.Duration) {
	c.log.Info().Dur("cleanup_frequency", frequency).Msg("starting session cleaner")

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		return
	}

	c.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			c.cleanup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	err := c.RunOnce(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("cleaning up sessions")
		return
	}

	c.log.Debug().Msg("sessions cleaned up")
}

// RunOnce runs both cleanups, the second even when the first fails.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs []error

	deleted, err := c.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("deleting expired sessions: %w", err))
	} else if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Msg("deleted expired sessions")
	}

	evicted, err := c.verification.EvictIdle(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("evicting idle verification sessions: %w", err))
	} else if evicted > 0 {
		c.log.Info().Int("evicted", evicted).Msg("evicted idle verification sessions")
	}

	return errors.Join(errs...)
}
