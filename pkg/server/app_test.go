package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/queue"
	"StockPulse/pkg/scheduler"
)

type countingCloser struct {
	closed atomic.Int32
	err    error
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return c.err
}

func TestApp_RunsUntilCancelledAndCloses(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = 2 * time.Second

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	sched := scheduler.New(applogger.Nop())
	var runs atomic.Int32
	require.NoError(t, sched.Register("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1})

	first, second := &countingCloser{}, &countingCloser{err: errors.New("boom")}
	app := New(cfg, nil, Components{
		HTTP:      srv,
		Scheduler: sched,
		Queue:     q,
		Closers: []Closer{
			{Name: "first", Closer: first},
			{Name: "second", Closer: second},
			{Name: "missing"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.EqualValues(t, 1, first.closed.Load())
	assert.EqualValues(t, 1, second.closed.Load())
}

func TestApp_RequiresHTTP(t *testing.T) {
	err := New(config.Default(), nil, Components{}).RunContext(context.Background())
	require.Error(t, err)
}

func TestApp_ConsumerHookTracesThenRunsConfiguredHooks(t *testing.T) {
	var seenTrace string
	var failures atomic.Int32
	app := New(config.Default(), nil, Components{Hooks: []pkgkafka.ConsumerHook{
		pkgkafka.HookFuncs{
			Before: func(ctx context.Context, km kafka.Message) (context.Context, []byte, error) {
				seenTrace = pkgkafka.TraceID(ctx)
				return ctx, km.Value, nil
			},
			Err: func(context.Context, kafka.Message, error) { failures.Add(1) },
		},
		nil,
	}})

	hook := app.consumerHook()
	km := kafka.Message{Value: []byte("{}"), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}
	ctx, data, err := hook.BeforeHandle(context.Background(), km)
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
	assert.Equal(t, "t-1", pkgkafka.TraceID(ctx))
	assert.Equal(t, "t-1", seenTrace)

	hook.OnError(ctx, km, errors.New("boom"))
	assert.EqualValues(t, 1, failures.Load())
}
