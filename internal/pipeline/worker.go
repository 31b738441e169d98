package pipeline

import (
	"context"

	"github.com/hibiken/asynq"

	"prospector_backend/platform/config"
	"prospector_backend/platform/logger"
	platformredis "prospector_backend/platform/redis"
)

// Worker runs the queue server that executes pipeline tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker creates the queue server and mounts the task handlers.
func NewWorker(cfg config.PipelineConfig, processor *Processor, log *logger.Logger) (*Worker, error) {
	opt, err := platformredis.NewAsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetWorkerConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskLeadEnrichment, processor.HandleLeadEnrichment)
	mux.HandleFunc(TaskScoreRecalculation, processor.HandleScoreRecalculation)

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("pipeline worker stopped", "error", err)
	}
}
