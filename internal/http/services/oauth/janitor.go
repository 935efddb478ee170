package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// CodeJanitor deletes expired authorization codes in the background.
type CodeJanitor struct {
	codes repository.AuthCodeRepository
	now   func() time.Time
}

func NewCodeJanitor(codes repository.AuthCodeRepository, now func() time.Time) *CodeJanitor {
	if now == nil {
		now = time.Now
	}
	return &CodeJanitor{codes: codes, now: now}
}

// Sweep runs one pass and returns how many codes were removed.
func (j *CodeJanitor) Sweep(ctx context.Context) (int, error) {
	return j.codes.DeleteExpired(ctx, j.now().UTC())
}

// Run sweeps every interval until ctx is cancelled.
func (j *CodeJanitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := logger.From(ctx).With(logger.Component("oauth.janitor"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := j.Sweep(ctx)
			if err != nil {
				log.Warn("expired code sweep failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Debug("expired codes removed", logger.Count(n))
			}
		}
	}
}
