package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Task is one unit of scheduled work. The context is cancelled on Stop.
type Task func(ctx context.Context) error

// parser matches the six-field (seconds first) specs the config uses.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks a cron spec without registering anything.
func Validate(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

// Scheduler runs named tasks on cron specs. A run is skipped while the
// previous run of the same task is still going.
type Scheduler struct {
	cron   *cron.Cron
	l      *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]Task
}

func New(l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	cl := cronLogger{l: l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		l:      l,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]Task),
	}
}

// Register adds task under name.
func (s *Scheduler) Register(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, task) }); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.tasks[name] = task
	return nil
}

// RunNow executes a registered task synchronously, outside the schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %q not registered", name)
	}
	return s.run(name, task)
}

func (s *Scheduler) run(name string, task Task) error {
	start := time.Now()
	s.l.Debug("running task", logger.String("task", name))
	err := task(s.ctx)
	if err != nil {
		s.l.Error("task failed",
			logger.String("task", name),
			logger.Duration("duration_ms", time.Since(start)),
			logger.Error(err))
		return err
	}
	s.l.Info("task done",
		logger.String("task", name),
		logger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", logger.Int("tasks", len(s.cron.Entries())))
}

// Stop cancels running tasks and waits for them up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct{ l *logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kv(keysAndValues), logger.Error(err))...)
}

func kv(pairs []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(pairs[i]), pairs[i+1]))
	}
	return out
}
