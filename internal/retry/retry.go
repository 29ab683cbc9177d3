package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy bounds the retries made at a gateway boundary.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy allows three attempts in total, backing off from 1s up to 8s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, InitialInterval: time.Second, MaxInterval: 8 * time.Second}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a permanent error, the context ends,
// or the retries are exhausted. The last error is returned.
func Do(ctx context.Context, p Policy, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("retrying")
	}
	return backoff.RetryNotify(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx), notify)
}

// FromStatus marks client errors other than 429 as permanent.
func FromStatus(status int, err error) error {
	if status >= 400 && status < 500 && status != 429 {
		return Permanent(err)
	}
	return err
}
