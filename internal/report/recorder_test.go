package report

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/neatdrive/simulator/internal/dispatcher"
	"github.com/neatdrive/simulator/internal/run"
	"github.com/neatdrive/simulator/internal/storage"
	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu          sync.Mutex
	started     bool
	ended       bool
	generations []*core.GenerationResult
	recordErr   error
	delay       time.Duration
}

var _ storage.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Init() error  { return nil }
func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) StartRun(r *core.Run, t *core.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	r.ID = 11
	t.ID = 4
	return nil
}

func (f *fakeBackend) RecordGeneration(res *core.GenerationResult) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generations = append(f.generations, res)
	return f.recordErr
}

func (f *fakeBackend) EndRun() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = true
	return nil
}

func (f *fakeBackend) recorded() []*core.GenerationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.GenerationResult(nil), f.generations...)
}

type fakeMetrics struct {
	mu     sync.Mutex
	tracks []string
}

func (f *fakeMetrics) RecordGeneration(trackName string, _ *core.GenerationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, trackName)
	return nil
}

func newTestRecorder(t *testing.T, backend storage.Backend, metrics MetricsWriter, opts Options) (*Recorder, *run.Context) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := dispatcher.New(log.With("component", "dispatcher"))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	rc := run.NewContext()
	return NewRecorder(d, backend, metrics, rc, opts, log), rc
}

func TestRecorder_Lifecycle(t *testing.T) {
	backend := &fakeBackend{delay: 5 * time.Millisecond}
	metrics := &fakeMetrics{}
	r, rc := newTestRecorder(t, backend, metrics, Options{CheckpointInterval: 1, MaxHistory: 10})

	coreRun := &core.Run{Name: "lifecycle"}
	track := &core.Track{Name: "oval"}
	require.NoError(t, r.StartRun(coreRun, track))
	assert.Equal(t, uint(11), coreRun.ID)
	assert.Equal(t, uint(11), rc.GetRun().ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RecordGeneration(genResult(i)))
	}
	require.NoError(t, r.EndRun())

	assert.True(t, backend.ended)
	assert.Len(t, backend.recorded(), 3)
	assert.Equal(t, []string{"oval", "oval", "oval"}, metrics.tracks)
	assert.Equal(t, 3, r.History().Len())
	assert.Equal(t, 2, rc.GetGeneration())
}

func TestRecorder_CheckpointStripsPaths(t *testing.T) {
	backend := &fakeBackend{}
	r, _ := newTestRecorder(t, backend, nil, Options{CheckpointInterval: 2, MaxHistory: 10})
	require.NoError(t, r.StartRun(&core.Run{}, &core.Track{}))

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RecordGeneration(genResult(i)))
	}
	require.NoError(t, r.EndRun())

	recorded := backend.recorded()
	require.Len(t, recorded, 3)
	assert.NotEmpty(t, recorded[0].Agents[0].Path)
	assert.Empty(t, recorded[1].Agents[0].Path)
	assert.NotEmpty(t, recorded[2].Agents[0].Path)

	// history keeps the full latest generation
	latest, ok := r.History().Latest()
	require.True(t, ok)
	assert.NotEmpty(t, latest.Agents[0].Path)
}

func TestRecorder_StorageErrorDoesNotStopRun(t *testing.T) {
	backend := &fakeBackend{recordErr: errors.New("disk full")}
	r, _ := newTestRecorder(t, backend, nil, Options{MaxHistory: 10})
	require.NoError(t, r.StartRun(&core.Run{}, &core.Track{}))

	require.NoError(t, r.RecordGeneration(genResult(0)))
	require.NoError(t, r.RecordGeneration(genResult(1)))
	require.NoError(t, r.EndRun())

	assert.Len(t, backend.recorded(), 2)
	assert.Equal(t, 2, r.History().Len())
}

func TestRecorder_InvalidPayload(t *testing.T) {
	r, _ := newTestRecorder(t, &fakeBackend{}, nil, Options{})
	_, err := r.d.Dispatch(dispatcher.Event{Command: CmdRunStart, Payload: "nope"})
	assert.Error(t, err)
}
