package dispatcher

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cmdRunStart   = ":RUN:START:"
	cmdGeneration = ":GENERATION:"
	cmdRunEnd     = ":RUN:END:"
)

// logSink collects JSON records written by buffered workers.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) records(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(s.buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *logSink) {
	t.Helper()
	sink := &logSink{}
	log := slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d, err := New(log.With("component", "dispatcher"))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, sink
}

func TestDispatch_SyncRunStart(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got *core.Run
	d.Register(cmdRunStart, func(e Event) (any, error) {
		got = e.Payload.(*core.Run)
		return got.Name, nil
	})

	result, err := d.Dispatch(Event{Command: cmdRunStart, Payload: &core.Run{Name: "oval-1"}})
	require.NoError(t, err)
	assert.Equal(t, "oval-1", result)
	require.NotNil(t, got)
	assert.Equal(t, "oval-1", got.Name)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":CHECKPOINT:"})
	assert.ErrorContains(t, err, ":CHECKPOINT:")
	assert.False(t, d.HasHandler(":CHECKPOINT:"))
}

func TestDispatch_BufferedGenerationsInOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var seen []int
	d.Register(cmdGeneration, func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Payload.(*core.GenerationResult).Generation)
		return nil, nil
	}, Buffered(16))

	for gen := 0; gen < 4; gen++ {
		result, err := d.Dispatch(Event{Command: cmdGeneration, Payload: &core.GenerationResult{Generation: gen}})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
}

func TestDispatch_FullQueueDropsGeneration(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	d.Register(cmdGeneration, func(e Event) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(Event{Command: cmdGeneration})
	require.NoError(t, err)
	<-started
	for i := 0; i < 2; i++ {
		_, err = d.Dispatch(Event{Command: cmdGeneration})
		require.NoError(t, err)
	}

	_, err = d.Dispatch(Event{Command: cmdGeneration})
	assert.ErrorContains(t, err, "queue full")

	close(release)
}

func TestDispatch_BlockingWaitsForRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register(cmdRunEnd, func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1), Blocking())

	_, err := d.Dispatch(Event{Command: cmdRunEnd})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: cmdRunEnd})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: cmdRunEnd})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch stayed blocked after the worker drained")
	}
}

func TestLogged_RecordsCommandAndPayloadType(t *testing.T) {
	d, sink := newTestDispatcher(t)

	d.Register(cmdGeneration, func(e Event) (any, error) {
		return "stored", nil
	}, Logged())

	_, err := d.Dispatch(Event{Command: cmdGeneration, Payload: &core.GenerationResult{Generation: 2}})
	require.NoError(t, err)

	recs := sink.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "handling event", recs[0]["msg"])
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "dispatcher", recs[0]["component"])
	assert.Equal(t, cmdGeneration, recs[0]["command"])
	assert.Equal(t, "*core.GenerationResult", recs[0]["payload"])
	assert.Equal(t, "event complete", recs[1]["msg"])
	assert.Contains(t, recs[1], "duration")
}

func TestLogged_ReportsHandlerError(t *testing.T) {
	d, sink := newTestDispatcher(t)

	d.Register(cmdRunEnd, func(e Event) (any, error) {
		return nil, errors.New("backend unavailable")
	}, Logged())

	_, err := d.Dispatch(Event{Command: cmdRunEnd})
	require.Error(t, err)

	recs := sink.records(t)
	require.NotEmpty(t, recs)
	last := recs[len(recs)-1]
	assert.Equal(t, "ERROR", last["level"])
	assert.Equal(t, "event failed", last["msg"])
	assert.Equal(t, cmdRunEnd, last["command"])
	assert.Equal(t, "backend unavailable", last["error"])
}

func TestLogged_BufferedLogsOnWorker(t *testing.T) {
	d, sink := newTestDispatcher(t)

	var handled atomic.Int32
	d.Register(cmdGeneration, func(e Event) (any, error) {
		handled.Add(1)
		return nil, errors.New("disk full")
	}, Buffered(8), Logged())

	result, err := d.Dispatch(Event{Command: cmdGeneration})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	d.Close()
	assert.Equal(t, int32(1), handled.Load())

	var failed bool
	for _, rec := range sink.records(t) {
		if rec["msg"] == "event failed" {
			failed = true
			assert.Equal(t, "disk full", rec["error"])
		}
	}
	assert.True(t, failed, "async failure should be logged")
}

func TestClose_DrainsQueueThenRejects(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var stored atomic.Int32
	d.Register(cmdGeneration, func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		stored.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		_, err := d.Dispatch(Event{Command: cmdGeneration})
		require.NoError(t, err)
	}
	d.Close()
	assert.Equal(t, int32(5), stored.Load())

	_, err := d.Dispatch(Event{Command: cmdGeneration})
	assert.ErrorIs(t, err, ErrClosed)

	assert.NotPanics(t, d.Close)
}

func TestDispatch_StampsMissingTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got time.Time
	d.Register(cmdRunStart, func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	_, err := d.Dispatch(Event{Command: cmdRunStart})
	require.NoError(t, err)
	assert.False(t, got.IsZero())

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err = d.Dispatch(Event{Command: cmdRunStart, Timestamp: started})
	require.NoError(t, err)
	assert.True(t, got.Equal(started))
}
