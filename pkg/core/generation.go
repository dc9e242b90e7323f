// pkg/core/generation.go
package core

import "time"

// StopReason tells why a generation ended.
type StopReason string

const (
	StopAllFinished StopReason = "all_finished"
	StopAllCrashed  StopReason = "all_crashed"
	StopTimeLimit   StopReason = "time_limit"
	StopTickLimit   StopReason = "tick_limit"
	StopAborted     StopReason = "aborted"
)

// AgentResult is the final state of one agent at the end of a generation.
type AgentResult struct {
	Index        int          `json:"index"`
	Fitness      float64      `json:"fitness"`
	Alive        bool         `json:"alive"`
	Finished     bool         `json:"finished"`
	Distance     float64      `json:"distance"`
	Speed        float64      `json:"speed"`
	Heading      float64      `json:"heading"`
	SpeedPenalty float64      `json:"speedPenalty"`
	Sensors      [5]int       `json:"sensors"`
	Path         []Position2D `json:"path,omitempty"`
}

// GenerationResult is the per-generation snapshot handed to reporting sinks.
type GenerationResult struct {
	RunID         uint          `json:"runId"`
	Generation    int           `json:"generation"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	Ticks         int           `json:"ticks"`
	BestFitness   float64       `json:"bestFitness"`
	MaxFitness    float64       `json:"maxFitness"`
	AvgFitness    float64       `json:"avgFitness"`
	Crashes       int           `json:"crashes"`
	Finishes      int           `json:"finishes"`
	LeaderIndex   int           `json:"leaderIndex"`
	LeaderSensors [5]int        `json:"leaderSensors"`
	StopReason    StopReason    `json:"stopReason"`
	Agents        []AgentResult `json:"agents"`
}
