package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"prospector_backend/platform/config"
	platformredis "prospector_backend/platform/redis"
)

// recalcTaskID coalesces recalculation requests: config mutations arriving
// while a recalculation is still queued collapse into the queued one.
const recalcTaskID = "scoring:recalculate"

// Client enqueues pipeline tasks.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
}

// NewClient creates the queue client.
func NewClient(cfg config.PipelineConfig) (*Client, error) {
	opt, err := platformredis.NewAsynqOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetQueueName()
	if queue == "" {
		queue = "default"
	}

	maxRetry := cfg.GetJobMaxRetry()
	if maxRetry < 0 {
		maxRetry = 0
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		maxRetry:  maxRetry,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueLeadEnrichment schedules one lead's pipeline run, optionally
// delayed, and returns the queue task id.
func (c *Client) EnqueueLeadEnrichment(ctx context.Context, payload LeadEnrichmentPayload, delay time.Duration) (string, error) {
	task, err := NewLeadEnrichmentTask(payload)
	if err != nil {
		return "", err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// EnqueueScoreRecalculation schedules a full recalculation. A request that
// finds one already queued is absorbed silently.
func (c *Client) EnqueueScoreRecalculation(ctx context.Context) error {
	task, err := NewScoreRecalculationTask(ScoreRecalculationPayload{Reason: "config_changed"})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.TaskID(recalcTaskID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// QueueDepth reports how many tasks are waiting, running or scheduled.
func (c *Client) QueueDepth(ctx context.Context) (int, error) {
	info, err := c.inspector.GetQueueInfo(c.queue)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}
