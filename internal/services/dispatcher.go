package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/sse"
)

// PlanJob is the unit of work handed from the execution trigger to the
// pipeline. It carries identifiers only; workers re-load state from the
// database so a job can be processed by any process.
type PlanJob struct {
	TenantID uuid.UUID `json:"tenant_id"`
	PlanID   uuid.UUID `json:"plan_id"`
}

// JobHandler processes one claimed plan end to end.
type JobHandler func(ctx context.Context, job PlanJob)

// Dispatcher hands a claimed plan off for processing. The inline dispatcher
// runs the pipeline in-process; the redis dispatcher pushes the job onto a
// shared list consumed by worker loops.
type Dispatcher interface {
	Dispatch(ctx context.Context, job PlanJob) error
	Mode() string
}

// NewPipelineJobHandler adapts the pipeline into a JobHandler, wiring a
// tenant-scoped SSE sink for progress events. Pipeline errors are already
// persisted on the plan, so the handler only logs them.
func NewPipelineJobHandler(baseLog *logger.Logger, pipeline ContentPipelineService, hub *sse.SSEHub) JobHandler {
	log := baseLog.With("component", "PipelineJobHandler")
	return func(ctx context.Context, job PlanJob) {
		sink := NewSSEProgressSink(hub, job.TenantID, job.PlanID)
		if err := pipeline.Process(ctx, job.TenantID, job.PlanID, sink); err != nil {
			log.Error("Plan processing failed", "plan_id", job.PlanID, "tenant_id", job.TenantID, "error", err)
		}
	}
}

type inlineDispatcher struct {
	log     *logger.Logger
	handler JobHandler
	wg      sync.WaitGroup
}

func NewInlineDispatcher(baseLog *logger.Logger, handler JobHandler) *inlineDispatcher {
	return &inlineDispatcher{
		log:     baseLog.With("dispatcher", "inline"),
		handler: handler,
	}
}

func (d *inlineDispatcher) Mode() string { return "inline" }

// Dispatch runs the job in a detached goroutine so the HTTP request that
// triggered execution returns immediately. The job context is independent of
// the request context.
func (d *inlineDispatcher) Dispatch(_ context.Context, job PlanJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Job handler panicked", "plan_id", job.PlanID, "panic", r)
			}
		}()
		d.handler(context.Background(), job)
	}()
	return nil
}

// Wait blocks until all in-flight jobs finish. Used during shutdown and in
// tests.
func (d *inlineDispatcher) Wait() {
	d.wg.Wait()
}

type redisDispatcher struct {
	log     *logger.Logger
	rdb     *redis.Client
	key     string
	workers int
	handler JobHandler
	wg      sync.WaitGroup
}

func NewRedisDispatcher(baseLog *logger.Logger, rdb *redis.Client, key string, workers int, handler JobHandler) *redisDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &redisDispatcher{
		log:     baseLog.With("dispatcher", "redis", "queue_key", key),
		rdb:     rdb,
		key:     key,
		workers: workers,
		handler: handler,
	}
}

func (d *redisDispatcher) Mode() string { return "redis" }

func (d *redisDispatcher) Dispatch(ctx context.Context, job PlanJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode plan job: %w", err)
	}
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue plan job: %w", err)
	}
	return nil
}

// StartWorkers launches the consumer loops. Each worker blocks on BRPOP with
// a short timeout so it notices context cancellation; malformed payloads are
// dropped with a log line rather than requeued.
func (d *redisDispatcher) StartWorkers(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		worker := i
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			log := d.log.With("worker", worker)
			log.Info("Queue worker started")
			for {
				select {
				case <-ctx.Done():
					log.Info("Queue worker stopping")
					return
				default:
				}

				vals, err := d.rdb.BRPop(ctx, 5*time.Second, d.key).Result()
				if errors.Is(err, redis.Nil) {
					continue
				}
				if err != nil {
					if ctx.Err() != nil {
						log.Info("Queue worker stopping")
						return
					}
					log.Warn("Queue pop failed", "error", err)
					time.Sleep(time.Second)
					continue
				}
				if len(vals) != 2 {
					continue
				}

				var job PlanJob
				if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
					log.Warn("Dropping malformed plan job", "payload", truncate(vals[1], 200), "error", err)
					continue
				}
				d.handler(ctx, job)
			}
		}()
	}
}

// Wait blocks until all workers exit after their context is cancelled.
func (d *redisDispatcher) Wait() {
	d.wg.Wait()
}
