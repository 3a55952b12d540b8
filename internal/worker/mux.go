package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"profilescraper/internal/logger"
)

type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	m := &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
	m.mux.Use(m.logging)
	return m
}

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

func (m *Mux) logging(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		m.log.LogDebugf("task %s started", task.Type())
		err := next.ProcessTask(ctx, task)
		if err != nil {
			m.log.LogErrorf("task %s failed after %s: %v", task.Type(), time.Since(start), err)
			return err
		}
		m.log.LogInfof("task %s done in %s", task.Type(), time.Since(start))
		return nil
	})
}
