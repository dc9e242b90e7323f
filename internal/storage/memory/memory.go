// Package memory implements storage.Backend by keeping the run in memory
// and rewriting the dashboard document after every generation.
package memory

import (
	"sync"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/report"
	"github.com/neatdrive/simulator/pkg/core"
)

// Backend stores run data in memory and exports it to JSON
type Backend struct {
	cfg     config.MemoryConfig
	opts    report.Options
	run     *core.Run
	track   *core.Track
	history *report.History

	lastExportPath string
	idCounter      uint
	mu             sync.Mutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, opts report.Options) *Backend {
	return &Backend{
		cfg:     cfg,
		opts:    opts,
		history: report.NewHistory(opts.MaxHistory, opts.IncludeSensors),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run. IDs count up per process.
func (b *Backend) StartRun(run *core.Run, track *core.Track) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	run.ID = b.idCounter
	if track.ID == 0 {
		track.ID = b.idCounter
	}
	b.run = run
	b.track = track
	b.history.Reset()
	return nil
}

// RecordGeneration adds the generation and rewrites the document so a
// dashboard can follow the run live.
func (b *Backend) RecordGeneration(res *core.GenerationResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	b.history.Add(res)
	return b.exportJSON()
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	err := b.exportJSON()
	b.run = nil
	return err
}

// ExportedFilePath returns the path of the last written document.
func (b *Backend) ExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastExportPath
}

// History returns the backend's generation history.
func (b *Backend) History() *report.History {
	return b.history
}
