package run

import (
	"sync"

	"github.com/neatdrive/simulator/pkg/core"
)

// Context holds the current run, track and generation number
type Context struct {
	mu         sync.RWMutex
	Run        *core.Run
	Track      *core.Track
	Generation int
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Run:        &core.Run{Name: "No run started"},
		Track:      &core.Track{Name: "No track loaded"},
		Generation: -1,
	}
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Run
}

// GetTrack returns the current track
func (c *Context) GetTrack() *core.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Track
}

// GetGeneration returns the generation being simulated, or -1 before the first
func (c *Context) GetGeneration() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Generation
}

// SetRun sets the current run and track and resets the generation counter
func (c *Context) SetRun(run *core.Run, track *core.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Run = run
	c.Track = track
	c.Generation = -1
}

// SetGeneration records the generation being simulated
func (c *Context) SetGeneration(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Generation = n
}
