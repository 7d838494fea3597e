package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockPulse/pkg/logger"

	"github.com/google/uuid"
)

const popWait = time.Second

// Queue runs registered jobs on a pool of workers. Failed messages are
// rescheduled with a delay until RetryLimit and then buried.
type Queue struct {
	logger    *logger.Logger
	config    QueueConfig
	store     backend
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
}

func newQueue(lgr *logger.Logger, config *QueueConfig, store backend) *Queue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	cfg := QueueConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		logger: lgr,
		config: cfg,
		store:  store,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// RegisterJobs registers multiple jobs.
func (q *Queue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

// RegisterJob registers a single job.
func (q *Queue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start checks the backend and launches workers plus the retry processor.
func (q *Queue) Start() error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(q.ctx, 5*time.Second)
	defer cancel()
	if err := q.store.ping(ctx); err != nil {
		q.mu.Lock()
		q.isRunning = false
		q.mu.Unlock()
		return fmt.Errorf("queue ping: %w", err)
	}

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.retryProcessor()

	q.logger.Info("queue started",
		logger.Int("workers", q.config.Workers),
		logger.String("backend", q.store.describe()))
	return nil
}

// Stop gracefully stops the queue.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.logger.Info("stopping queue...")
	q.cancel()
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.logger.Info("queue stopped gracefully")
		return nil
	}
}

// Enqueue stores a queued status and pushes the message. It returns the
// job id callers poll with Status.
func (q *Queue) Enqueue(ctx context.Context, msgType string, payload any) (string, error) {
	q.mu.RLock()
	_, exists := q.jobs[msgType]
	q.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	now := q.now()
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now,
	}
	msgData, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	st := &Status{ID: msg.ID, Type: msgType, State: StateQueued, CreatedAt: now, UpdatedAt: now}
	if err := q.store.saveStatus(ctx, st, q.config.ResultTTL); err != nil {
		return "", fmt.Errorf("save status: %w", err)
	}
	if err := q.store.push(ctx, msgData); err != nil {
		return "", fmt.Errorf("push: %w", err)
	}
	return msg.ID, nil
}

// Status returns the latest known state of a job.
func (q *Queue) Status(ctx context.Context, id string) (*Status, error) {
	return q.store.loadStatus(ctx, id)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
			return
		default:
		}

		data, err := q.store.pop(q.ctx, popWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			q.logger.Error("pop error", logger.Error(err))
			q.sleep(time.Second)
			continue
		}
		if data == nil {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			q.logger.Error("unmarshal message", logger.Error(err))
			continue
		}
		q.processMessage(msg)
	}
}

func (q *Queue) processMessage(msg Message) {
	q.mu.RLock()
	job, exists := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !exists {
		q.logger.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	st := q.status(msg)
	st.State = StateRunning
	st.Attempts = msg.Attempts + 1
	q.save(st)

	start := time.Now()
	result, err := job.Handle(q.ctx, msg.Payload)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) && q.ctx.Err() != nil {
			// shutting down: put it back for the next process
			q.logger.Warn("message cancelled",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()),
				logger.Int64("elapsed_ms", elapsed.Milliseconds()))
			q.requeue(msg, st)
			return
		}
		q.handleProcessingError(msg, job, st, err)
		return
	}

	raw, mErr := json.Marshal(result)
	if mErr != nil {
		st.State = StateFailed
		st.Error = fmt.Sprintf("marshal result: %v", mErr)
	} else {
		st.State = StateDone
		st.Result = raw
		st.Error = ""
	}
	q.save(st)
	q.logger.Debug("job done",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int64("elapsed_ms", elapsed.Milliseconds()))
}

func (q *Queue) handleProcessingError(msg Message, job Job, st *Status, err error) {
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	st.Error = err.Error()
	if msg.Attempts < q.config.RetryLimit && !IsPermanent(err) {
		msg.Attempts++
		retryTime := q.now().Add(q.config.RetryDelay)
		st.State = StateQueued
		q.save(st)
		q.scheduleRetry(msg, retryTime)
		q.logger.Info("scheduled retry",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.String("retry_at", retryTime.Format(time.RFC3339)))
		return
	}

	q.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()))
	st.State = StateFailed
	q.save(st)
	q.moveToDeadLetterQueue(msg)
}

func (q *Queue) requeue(msg Message, st *Status) {
	st.State = StateQueued
	q.save(st)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := q.store.push(context.Background(), data); err != nil {
		q.logger.Error("requeue", logger.Error(err))
	}
}

func (q *Queue) scheduleRetry(msg Message, retryTime time.Time) {
	msgData, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal retry", logger.Error(err))
		return
	}
	if err := q.store.schedule(context.Background(), msgData, retryTime); err != nil {
		q.logger.Error("schedule retry", logger.Error(err))
	}
}

func (q *Queue) moveToDeadLetterQueue(msg Message) {
	msgData, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := q.store.bury(context.Background(), msgData); err != nil {
		q.logger.Error("bury", logger.Error(err))
	}
}

func (q *Queue) retryProcessor() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if err := q.store.promote(q.ctx, q.now()); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.Error("promote retries", logger.Error(err))
			}
		}
	}
}

// status loads the stored status or rebuilds one when it expired.
func (q *Queue) status(msg Message) *Status {
	st, err := q.store.loadStatus(q.ctx, msg.ID)
	if err != nil {
		return &Status{ID: msg.ID, Type: msg.Type, CreatedAt: msg.Timestamp}
	}
	return st
}

func (q *Queue) save(st *Status) {
	st.UpdatedAt = q.now()
	if err := q.store.saveStatus(context.Background(), st, q.config.ResultTTL); err != nil {
		q.logger.Error("save status", logger.String("id", st.ID), logger.Error(err))
	}
}

func (q *Queue) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.ctx.Done():
	case <-t.C:
	}
}
