package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// JobProcessor runs registered handlers over jobs pulled from a Source
type JobProcessor struct {
	source         Source
	handlers       map[string]Handler
	workerCount    int
	idle           time.Duration
	logger         *slog.Logger
	stopChan       chan struct{}
	wg             sync.WaitGroup
	processingJobs sync.Map
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewJobProcessor creates a new JobProcessor
func NewJobProcessor(source Source, workerCount int, logger *slog.Logger) *JobProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobProcessor{
		source:      source,
		handlers:    make(map[string]Handler),
		workerCount: workerCount,
		idle:        100 * time.Millisecond,
		logger:      logger.With("component", "job_processor"),
		stopChan:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterHandler registers a handler for a specific queue. Handlers must be
// registered before Start.
func (p *JobProcessor) RegisterHandler(queueName string, handler Handler) {
	p.handlers[queueName] = handler
}

// Queues lists the registered queue names in a stable order
func (p *JobProcessor) Queues() []string {
	queues := make([]string, 0, len(p.handlers))
	for queue := range p.handlers {
		queues = append(queues, queue)
	}
	sort.Strings(queues)
	return queues
}

// Start starts the job processor
func (p *JobProcessor) Start() {
	p.logger.Info("starting job processor", "workers", p.workerCount, "queues", p.Queues())

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the job processor and waits for in-flight jobs
func (p *JobProcessor) Stop() {
	p.logger.Info("stopping job processor")
	close(p.stopChan)
	p.cancel()
	p.wg.Wait()
	p.logger.Info("job processor stopped")
}

func (p *JobProcessor) worker(id int) {
	defer p.wg.Done()

	queues := p.Queues()
	if len(queues) == 0 {
		p.logger.Warn("worker exiting: no queues registered", "worker", id)
		return
	}

	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		for _, queueName := range queues {
			job, err := p.source.Dequeue(p.ctx, queueName)
			if err != nil {
				if p.ctx.Err() == nil {
					p.logger.Error("failed to dequeue job", "worker", id, "queue", queueName, "error", err)
				}
				continue
			}
			if job == nil {
				continue
			}

			if err := p.ProcessJob(p.ctx, job); err != nil {
				p.logger.Warn("job processing failed", "worker", id, "job_id", job.ID, "queue", queueName, "error", err)
			}
			// one job per pass so other queues get a turn
			break
		}

		select {
		case <-p.stopChan:
			return
		case <-time.After(p.idle):
		}
	}
}

// ProcessJob runs the handler for job and records the outcome
func (p *JobProcessor) ProcessJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}

	handler, ok := p.handlers[job.Queue]
	if !ok {
		err := Permanent(fmt.Errorf("no handler registered for queue: %s", job.Queue))
		if failErr := p.source.Fail(ctx, job, err); failErr != nil {
			p.logger.Error("failed to mark job failed", "job_id", job.ID, "error", failErr)
		}
		return err
	}

	p.processingJobs.Store(job.ID, true)
	defer p.processingJobs.Delete(job.ID)

	if err := handler(ctx, job); err != nil {
		if failErr := p.source.Fail(ctx, job, err); failErr != nil {
			p.logger.Error("failed to mark job failed", "job_id", job.ID, "error", failErr)
		}
		return fmt.Errorf("job processing failed: %w", err)
	}

	if err := p.source.Complete(ctx, job); err != nil {
		p.logger.Error("failed to mark job completed", "job_id", job.ID, "error", err)
	}
	return nil
}

// IsProcessing checks if a job is currently being processed
func (p *JobProcessor) IsProcessing(jobID string) bool {
	_, ok := p.processingJobs.Load(jobID)
	return ok
}
