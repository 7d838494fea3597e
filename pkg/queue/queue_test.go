package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"StockPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	Word string `json:"word"`
}

type funcJob struct {
	typ   string
	calls atomic.Int32
	fn    func(n int32, p json.RawMessage) (any, error)
}

func (j *funcJob) Name() string { return j.typ + "-job" }
func (j *funcJob) Type() string { return j.typ }
func (j *funcJob) Handle(_ context.Context, p json.RawMessage) (any, error) {
	return j.fn(j.calls.Add(1), p)
}

func startQueue(t *testing.T, job Job, retries int) (*Queue, *memoryBackend) {
	t.Helper()
	b := newMemoryBackend()
	q := newQueue(logger.Nop(), &QueueConfig{
		Workers:      2,
		RetryLimit:   retries,
		RetryDelay:   time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, b)
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q, b
}

func waitFinished(t *testing.T, q *Queue, id string) *Status {
	t.Helper()
	var st *Status
	require.Eventually(t, func() bool {
		var err error
		st, err = q.Status(context.Background(), id)
		return err == nil && st.Finished()
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestQueue_RunsJobAndStoresResult(t *testing.T) {
	job := &funcJob{typ: "echo", fn: func(_ int32, p json.RawMessage) (any, error) {
		in, err := ParsePayload[echoPayload](p)
		if err != nil {
			return nil, err
		}
		return map[string]string{"echo": in.Word}, nil
	}}
	q, _ := startQueue(t, job, 0)

	id, err := q.Enqueue(context.Background(), "echo", echoPayload{Word: "hi"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	st := waitFinished(t, q, id)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, 1, st.Attempts)
	assert.JSONEq(t, `{"echo":"hi"}`, string(st.Result))
	assert.Empty(t, st.Error)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	job := &funcJob{typ: "flaky", fn: func(int32, json.RawMessage) (any, error) {
		return nil, errors.New("upstream down")
	}}
	q, b := startQueue(t, job, 2)

	id, err := q.Enqueue(context.Background(), "flaky", nil)
	require.NoError(t, err)

	st := waitFinished(t, q, id)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, "upstream down", st.Error)
	assert.EqualValues(t, 3, job.calls.Load())
	assert.Equal(t, 1, b.deadCount())
}

func TestQueue_RetrySucceeds(t *testing.T) {
	job := &funcJob{typ: "second", fn: func(n int32, _ json.RawMessage) (any, error) {
		if n == 1 {
			return nil, errors.New("first try")
		}
		return "ok", nil
	}}
	q, _ := startQueue(t, job, 3)

	id, err := q.Enqueue(context.Background(), "second", nil)
	require.NoError(t, err)

	st := waitFinished(t, q, id)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, 2, st.Attempts)
	assert.JSONEq(t, `"ok"`, string(st.Result))
}

func TestQueue_PermanentErrorNotRetried(t *testing.T) {
	job := &funcJob{typ: "perm", fn: func(int32, json.RawMessage) (any, error) {
		return nil, Permanent(errors.New("bad key"))
	}}
	q, b := startQueue(t, job, 5)

	id, err := q.Enqueue(context.Background(), "perm", nil)
	require.NoError(t, err)

	st := waitFinished(t, q, id)
	assert.Equal(t, StateFailed, st.State)
	assert.EqualValues(t, 1, job.calls.Load())
	assert.Equal(t, 1, b.deadCount())
}

func TestQueue_EnqueueUnknownType(t *testing.T) {
	q := NewMemoryQueue(nil, nil)
	_, err := q.Enqueue(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestQueue_StatusNotFound(t *testing.T) {
	q := NewMemoryQueue(nil, nil)
	_, err := q.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestQueue_QueuedBeforeStart(t *testing.T) {
	q := NewMemoryQueue(nil, nil)
	q.RegisterJob(&funcJob{typ: "later", fn: func(int32, json.RawMessage) (any, error) { return nil, nil }})

	id, err := q.Enqueue(context.Background(), "later", echoPayload{Word: "x"})
	require.NoError(t, err)

	st, err := q.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, st.State)
	assert.False(t, st.Finished())
}

func TestMemoryBackend_StatusExpires(t *testing.T) {
	b := newMemoryBackend()
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }

	require.NoError(t, b.saveStatus(context.Background(), &Status{ID: "a", State: StateDone}, time.Minute))
	_, err := b.loadStatus(context.Background(), "a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = b.loadStatus(context.Background(), "a")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryBackend_PromoteDue(t *testing.T) {
	b := newMemoryBackend()
	ctx := context.Background()
	base := time.Unix(1000, 0)

	require.NoError(t, b.schedule(ctx, []byte("late"), base.Add(time.Minute)))
	require.NoError(t, b.schedule(ctx, []byte("early"), base))
	require.NoError(t, b.promote(ctx, base))

	got, err := b.pop(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "early", string(got))

	got, err = b.pop(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[echoPayload](json.RawMessage(`{"word":"w"}`))
	require.NoError(t, err)
	assert.Equal(t, "w", p.Word)

	_, err = ParsePayload[echoPayload](nil)
	assert.Error(t, err)
}
