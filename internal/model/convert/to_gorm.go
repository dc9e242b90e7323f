// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/neatdrive/simulator/internal/geo"
	"github.com/neatdrive/simulator/internal/model"
	"github.com/neatdrive/simulator/pkg/core"
	"gorm.io/datatypes"
)

// sensorsToJSON converts a sensor vector to datatypes.JSON for DB storage.
func sensorsToJSON(s [5]int) datatypes.JSON {
	data, _ := json.Marshal(s)
	return datatypes.JSON(data)
}

// CoreToTrack converts a core.Track to a GORM model.Track.
func CoreToTrack(t core.Track) model.Track {
	m := model.Track{
		Name:         t.Name,
		Width:        t.Width,
		Height:       t.Height,
		Length:       t.Metrics.Length,
		FinishX:      t.Metrics.Finish.Position.X,
		FinishY:      t.Metrics.Finish.Position.Y,
		FinishSize:   t.Metrics.Finish.Size,
		SpawnX:       t.Spawn.Position.X,
		SpawnY:       t.Spawn.Position.Y,
		SpawnHeading: t.Spawn.Heading,
		SpawnSize:    t.Spawn.Size,
	}
	m.ID = t.ID
	return m
}

// CoreToRun converts a core.Run to a GORM model.Run on the given track.
func CoreToRun(r core.Run, trackID uint) model.Run {
	m := model.Run{
		Name:             r.Name,
		StartTime:        r.StartTime,
		PopulationSize:   r.PopulationSize,
		TimeLimitSeconds: r.TimeLimit.Seconds(),
		Seed:             r.Seed,
		ExtensionVersion: r.ExtensionVersion,
		TrackID:          trackID,
	}
	m.ID = r.ID
	return m
}

// CoreToAgentResult converts a core.AgentResult to a GORM model.AgentResult.
func CoreToAgentResult(a core.AgentResult) model.AgentResult {
	return model.AgentResult{
		Index:        a.Index,
		Fitness:      a.Fitness,
		Alive:        a.Alive,
		Finished:     a.Finished,
		Distance:     a.Distance,
		Speed:        a.Speed,
		Heading:      a.Heading,
		SpeedPenalty: a.SpeedPenalty,
		Sensors:      sensorsToJSON(a.Sensors),
		Path:         geo.PathLineString(a.Path),
		PathLength:   geo.PathLength(a.Path),
	}
}

// CoreToGeneration converts a core.GenerationResult, agents included, to a
// GORM model.Generation.
func CoreToGeneration(g core.GenerationResult) model.Generation {
	m := model.Generation{
		RunID:         g.RunID,
		Number:        g.Generation,
		StartedAt:     g.StartedAt,
		DurationMs:    g.Duration.Milliseconds(),
		Ticks:         g.Ticks,
		BestFitness:   g.BestFitness,
		MaxFitness:    g.MaxFitness,
		AvgFitness:    g.AvgFitness,
		Crashes:       g.Crashes,
		Finishes:      g.Finishes,
		LeaderIndex:   g.LeaderIndex,
		LeaderSensors: sensorsToJSON(g.LeaderSensors),
		StopReason:    string(g.StopReason),
	}
	if len(g.Agents) > 0 {
		m.Agents = make([]model.AgentResult, len(g.Agents))
		for i, a := range g.Agents {
			m.Agents[i] = CoreToAgentResult(a)
		}
	}
	return m
}
