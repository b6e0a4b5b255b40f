// Package orderid issues human-readable order ids of the form
// EE<year><seq>, seq drawn from an atomic per-year counter.
package orderid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const maxTries = 4

type Generator struct {
	seq repository.SequenceRepository
	now func() time.Time
}

func NewGenerator(seq repository.SequenceRepository) *Generator {
	return &Generator{seq: seq, now: time.Now}
}

// WithClock replaces the clock used to pick the year.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Next never returns the same id twice, including under concurrency, as
// long as the counter honours its atomic increment.
func (g *Generator) Next(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	seq, err := backoff.Retry(ctx, func() (int64, error) {
		v, err := g.seq.Next(ctx, year)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("year", year).Msg("order id counter failed, retrying")
			return 0, err
		}
		if v <= 0 {
			return 0, backoff.Permanent(fmt.Errorf("counter returned non-positive sequence %d", v))
		}
		return v, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		return "", fmt.Errorf("orderid: next for %d: %w", year, err)
	}

	return domain.FormatOrderID(year, seq), nil
}
