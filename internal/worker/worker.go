// Package worker runs background jobs off Redis lists: deadline alerts and
// verification mail leave the request path through here.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeDeadlineAlert     JobType = "deadline_alert"
	JobTypeVerificationEmail JobType = "verification_email"
	JobTypeCleanup           JobType = "cleanup"
)

const (
	RetryQueue = "retry_queue"
	DeadQueue  = "dead_queue"

	defaultMaxTries = 3
	retryBackoff    = 30 * time.Second
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type Handler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]Handler
	queues       []string
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	poll := config.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]Handler),
		queues:       config.Queues,
		pollInterval: poll,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler Handler) {
	w.handlers[jobType] = handler
}

// Start launches n polling goroutines.
func (w *Worker) Start(n int) {
	log.Printf("🚀 Worker started with %d goroutines on queues %v", n, w.queues)
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.poll()
	}
}

// Stop cancels the worker context and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	log.Println("🛑 Worker stopped")
}

func (w *Worker) poll() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNextJob(); err != nil {
				log.Printf("⚠️  Job processing error: %v", err)
			}
		}
	}
}

// processNextJob pops one job from the first non-empty queue. An empty queue
// set is not an error. Jobs scheduled in the future go back to their queue.
func (w *Worker) processNextJob() error {
	for _, queue := range w.queues {
		data, err := w.client.LPop(w.ctx, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("popping from %s: %w", queue, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("decoding job from %s: %w", queue, err)
		}

		if job.ProcessAt.After(time.Now()) {
			return w.push(queue, &job)
		}

		handler, ok := w.handlers[job.Type]
		if !ok {
			return fmt.Errorf("no handler registered for job type %s", job.Type)
		}

		if err := handler(w.ctx, &job); err != nil {
			log.Printf("⚠️  Job %s (%s) failed: %v", job.ID, job.Type, err)
			return w.retry(&job)
		}
		return nil
	}
	return nil
}

// retry reschedules a failed job with backoff, or parks it in the dead queue
// once its attempts are spent.
func (w *Worker) retry(job *Job) error {
	job.Attempts++
	if job.Attempts >= job.MaxTries {
		log.Printf("💀 Job %s exhausted %d attempts, moving to dead queue", job.ID, job.MaxTries)
		return w.push(DeadQueue, job)
	}
	job.ProcessAt = time.Now().Add(retryBackoff * time.Duration(job.Attempts))
	return w.push(RetryQueue, job)
}

func (w *Worker) push(queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return w.client.RPush(w.ctx, queue, data).Err()
}

// JobQueue is the producer side.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Payload:   payload,
		MaxTries:  defaultMaxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	return q.client.RPush(context.Background(), queue, data).Err()
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	return q.client.LLen(context.Background(), queue).Result()
}
