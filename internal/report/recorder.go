package report

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neatdrive/simulator/internal/dispatcher"
	"github.com/neatdrive/simulator/internal/run"
	"github.com/neatdrive/simulator/internal/storage"
	"github.com/neatdrive/simulator/pkg/core"
)

// Dispatcher commands handled by the Recorder.
const (
	CmdRunStart   = ":RUN:START:"
	CmdGeneration = ":GENERATION:"
	CmdRunEnd     = ":RUN:END:"
)

// GenerationBuffer is the queue size of the generation handler.
const GenerationBuffer = 64

// MetricsWriter receives one point per generation, e.g. the influx manager.
type MetricsWriter interface {
	RecordGeneration(trackName string, res *core.GenerationResult) error
}

// RunStart is the payload of CmdRunStart.
type RunStart struct {
	Run   *core.Run
	Track *core.Track
}

// Recorder forwards lifecycle events to storage and metrics. Run start and
// end are handled synchronously; generations go through a buffered worker
// so persistence never runs on the simulation goroutine.
type Recorder struct {
	d       *dispatcher.Dispatcher
	backend storage.Backend
	metrics MetricsWriter
	runCtx  *run.Context
	history *History
	opts    Options
	log     *slog.Logger
	pending sync.WaitGroup
}

// NewRecorder creates a recorder and registers its handlers on d. metrics
// may be nil.
func NewRecorder(d *dispatcher.Dispatcher, backend storage.Backend, metrics MetricsWriter, runCtx *run.Context, opts Options, log *slog.Logger) *Recorder {
	r := &Recorder{
		d:       d,
		backend: backend,
		metrics: metrics,
		runCtx:  runCtx,
		history: NewHistory(opts.MaxHistory, opts.IncludeSensors),
		opts:    opts,
		log:     log,
	}

	d.Register(CmdRunStart, r.handleRunStart, dispatcher.Logged())
	d.Register(CmdGeneration, r.handleGeneration,
		dispatcher.Buffered(GenerationBuffer), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(CmdRunEnd, r.handleRunEnd, dispatcher.Logged())
	return r
}

// History returns the in-memory generation history.
func (r *Recorder) History() *History {
	return r.history
}

// StartRun persists the run and track, assigning their IDs.
func (r *Recorder) StartRun(coreRun *core.Run, track *core.Track) error {
	_, err := r.d.Dispatch(dispatcher.Event{
		Command: CmdRunStart,
		Payload: RunStart{Run: coreRun, Track: track},
	})
	return err
}

// RecordGeneration queues a finished generation. The result must not be
// modified afterwards.
func (r *Recorder) RecordGeneration(res *core.GenerationResult) error {
	r.pending.Add(1)
	_, err := r.d.Dispatch(dispatcher.Event{Command: CmdGeneration, Payload: res})
	if err != nil {
		r.pending.Done()
		return err
	}
	return nil
}

// EndRun waits for queued generations, then closes the run.
func (r *Recorder) EndRun() error {
	_, err := r.d.Dispatch(dispatcher.Event{Command: CmdRunEnd})
	return err
}

func (r *Recorder) handleRunStart(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(RunStart)
	if !ok || p.Run == nil || p.Track == nil {
		return nil, fmt.Errorf("invalid run start payload %T", e.Payload)
	}
	r.history.Reset()
	if err := r.backend.StartRun(p.Run, p.Track); err != nil {
		return nil, fmt.Errorf("storage start run: %w", err)
	}
	r.runCtx.SetRun(p.Run, p.Track)
	r.log.Info("Run started",
		"run", p.Run.ID,
		"name", p.Run.Name,
		"track", p.Track.Name,
		"population", p.Run.PopulationSize)
	return p.Run.ID, nil
}

func (r *Recorder) handleGeneration(e dispatcher.Event) (any, error) {
	defer r.pending.Done()

	res, ok := e.Payload.(*core.GenerationResult)
	if !ok || res == nil {
		return nil, fmt.Errorf("invalid generation payload %T", e.Payload)
	}
	r.runCtx.SetGeneration(res.Generation)
	r.history.Add(res)

	persisted := res
	if !storage.Checkpoint(res.Generation, r.opts.CheckpointInterval) {
		persisted = storage.StripPaths(res)
	}

	var errs []error
	if err := r.backend.RecordGeneration(persisted); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if r.metrics != nil {
		if err := r.metrics.RecordGeneration(r.runCtx.GetTrack().Name, res); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}

	r.log.Info("Generation finished",
		"generation", res.Generation,
		"best", res.BestFitness,
		"max", res.MaxFitness,
		"avg", res.AvgFitness,
		"crashes", res.Crashes,
		"finishes", res.Finishes,
		"ticks", res.Ticks,
		"reason", string(res.StopReason))
	return nil, errors.Join(errs...)
}

func (r *Recorder) handleRunEnd(dispatcher.Event) (any, error) {
	r.pending.Wait()
	if err := r.backend.EndRun(); err != nil {
		return nil, fmt.Errorf("storage end run: %w", err)
	}
	r.log.Info("Run ended", "generations", r.history.Len())
	return nil, nil
}
