// Package storage defines the persistence contract for training runs.
package storage

import "github.com/neatdrive/simulator/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management. StartRun assigns IDs to the passed run and track.
	StartRun(run *core.Run, track *core.Track) error
	EndRun() error

	// RecordGeneration persists one finished generation of the current run.
	RecordGeneration(res *core.GenerationResult) error
}

// Exporter is an optional interface for backends that write a document
// to disk.
type Exporter interface {
	ExportedFilePath() string
}

// Checkpoint reports whether generation n keeps agent paths given an
// interval. Intervals below one checkpoint every generation.
func Checkpoint(n, interval int) bool {
	if interval <= 1 {
		return true
	}
	return n%interval == 0
}

// StripPaths returns a copy of res without agent paths.
func StripPaths(res *core.GenerationResult) *core.GenerationResult {
	out := *res
	if len(res.Agents) > 0 {
		out.Agents = make([]core.AgentResult, len(res.Agents))
		for i, a := range res.Agents {
			a.Path = nil
			out.Agents[i] = a
		}
	}
	return &out
}
