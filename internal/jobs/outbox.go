package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-attendance/internal/ctxutil"
)

// OutboxProcessor: то, что умеет разобрать пачку событий outbox.
type OutboxProcessor interface {
	ProcessOutbox(ctx context.Context) (int, error)
	Kicks() <-chan struct{}
}

const (
	outboxJob    = "attendance-outbox"
	batchTimeout = 30 * time.Second
)

// StartOutboxLoop разбирает события посещаемости по таймеру и по сигналу после сохранения.
// Пачка обрабатывается повторно, пока батч приходит полным.
func StartOutboxLoop(r *Runner, p OutboxProcessor, interval time.Duration, batch int, log *zap.Logger) {
	r.EveryOrKick(interval, outboxJob, p.Kicks(), func(ctx context.Context) error {
		for {
			c, cancel := ctxutil.WithTimeout(ctx, batchTimeout)
			n, err := p.ProcessOutbox(c)
			cancel()
			if err != nil {
				log.Warn("outbox batch finished with errors", zap.Int("events", n), zap.Error(err))
				return err
			}
			if n > 0 {
				log.Debug("outbox batch processed", zap.Int("events", n))
			}
			if n < batch || ctx.Err() != nil {
				return nil
			}
		}
	})
}
