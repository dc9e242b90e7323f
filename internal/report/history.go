// Package report turns finished generations into persisted records and the
// dashboard document, off the simulation goroutine.
package report

import (
	"sync"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/queue"
	"github.com/neatdrive/simulator/pkg/core"
)

// DataFileName is the dashboard document written by file based sinks.
const DataFileName = "simulation_data.json"

// Options controls what reporting keeps.
type Options struct {
	IncludeSensors     bool
	CheckpointInterval int
	MaxHistory         int
}

// OptionsFromConfig maps the report config section.
func OptionsFromConfig(c config.ReportConfig) Options {
	return Options{
		IncludeSensors:     c.IncludeSensors,
		CheckpointInterval: c.CheckpointInterval,
		MaxHistory:         c.MaxHistory,
	}
}

// PathRecord is one agent trajectory with its final fitness.
type PathRecord struct {
	Path    [][2]float64 `json:"path"`
	Fitness float64      `json:"fitness"`
}

// SimulationData is the dashboard document. Histories are oldest first.
type SimulationData struct {
	Generation        int          `json:"generation"`
	SensorData        [][5]int     `json:"sensor_data"`
	AvgFitnessHistory []float64    `json:"avg_fitness_history"`
	FitnessHistory    []float64    `json:"fitness_history"`
	DetailedPathData  []PathRecord `json:"detailed_path_data"`
	Velocities        []float64    `json:"velocities"`
	Headings          []float64    `json:"headings"`
	CrashHistory      []int        `json:"crash_history"`
}

type summary struct {
	generation int
	maxFitness float64
	avgFitness float64
	crashes    int
}

// History keeps a bounded window of generation summaries plus the full
// latest generation.
type History struct {
	mu             sync.Mutex
	summaries      *queue.Queue[summary]
	latest         *core.GenerationResult
	includeSensors bool
}

// NewHistory creates a history holding at most maxHistory generations.
func NewHistory(maxHistory int, includeSensors bool) *History {
	return &History{
		summaries:      queue.NewBounded[summary](maxHistory),
		includeSensors: includeSensors,
	}
}

// Add appends a finished generation.
func (h *History) Add(res *core.GenerationResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries.Push(summary{
		generation: res.Generation,
		maxFitness: res.MaxFitness,
		avgFitness: res.AvgFitness,
		crashes:    res.Crashes,
	})
	h.latest = res
}

// Len returns the number of generations held.
func (h *History) Len() int {
	return h.summaries.Len()
}

// Latest returns the most recent generation.
func (h *History) Latest() (*core.GenerationResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.latest != nil
}

// Reset drops everything, used when a new run starts.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries.Clear()
	h.latest = nil
}

// SimulationData builds the dashboard document. Paths, velocities and
// headings describe the latest generation only.
func (h *History) SimulationData() SimulationData {
	h.mu.Lock()
	defer h.mu.Unlock()

	sums := h.summaries.Snapshot()
	data := SimulationData{
		SensorData:        [][5]int{},
		AvgFitnessHistory: make([]float64, len(sums)),
		FitnessHistory:    make([]float64, len(sums)),
		DetailedPathData:  []PathRecord{},
		Velocities:        []float64{},
		Headings:          []float64{},
		CrashHistory:      make([]int, len(sums)),
	}
	for i, s := range sums {
		data.AvgFitnessHistory[i] = s.avgFitness
		data.FitnessHistory[i] = s.maxFitness
		data.CrashHistory[i] = s.crashes
	}

	if h.latest == nil {
		return data
	}
	data.Generation = h.latest.Generation
	if h.includeSensors {
		data.SensorData = append(data.SensorData, h.latest.LeaderSensors)
	}
	for _, a := range h.latest.Agents {
		data.Velocities = append(data.Velocities, a.Speed)
		data.Headings = append(data.Headings, a.Heading)
		if len(a.Path) == 0 {
			continue
		}
		rec := PathRecord{Path: make([][2]float64, len(a.Path)), Fitness: a.Fitness}
		for j, p := range a.Path {
			rec.Path[j] = [2]float64{p.X, p.Y}
		}
		data.DetailedPathData = append(data.DetailedPathData, rec)
	}
	return data
}

// Replay builds a history from stored generations, e.g. for export.
func Replay(gens []core.GenerationResult, opts Options) *History {
	h := NewHistory(opts.MaxHistory, opts.IncludeSensors)
	for i := range gens {
		h.Add(&gens[i])
	}
	return h
}
