// pkg/core/run.go
package core

import "time"

// FinishMarker is the square goal region on a track.
type FinishMarker struct {
	Position Position2D
	Size     float64
}

// TrackMetrics holds the immutable per-track values the reward function needs.
type TrackMetrics struct {
	Length float64 // skeleton pixel count, a proxy for path length
	Finish FinishMarker
}

// Track describes the track a run is evaluated on.
type Track struct {
	ID      uint
	Name    string
	Width   int
	Height  int
	Metrics TrackMetrics
	Spawn   Pose
}

// Run represents one training session made of many generations.
type Run struct {
	ID               uint
	Name             string
	StartTime        time.Time
	PopulationSize   int
	TimeLimit        time.Duration
	Seed             int64
	ExtensionVersion string
}
