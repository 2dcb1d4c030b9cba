package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/school-attendance/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
}

func New(ctx context.Context) *Runner { return &Runner{ctx: ctx} }

// EveryOrKick запускает fn раз в interval, пока жив контекст раннера, а также сразу по сигналу из kick.
// Nil kick означает запуск только по таймеру. Сигналы, пришедшие во время выполнения, склеиваются в один следующий запуск.
func (r *Runner) EveryOrKick(interval time.Duration, name string, kick <-chan struct{}, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
			case <-kick:
			}
			r.run(name, fn)
		}
	}()
}

func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			jobErrors.WithLabelValues(name).Inc()
			observability.CaptureErr(fmt.Errorf("panic in job %s: %v", name, p))
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	if err := fn(r.ctx); err != nil {
		jobErrors.WithLabelValues(name).Inc()
	}
}
