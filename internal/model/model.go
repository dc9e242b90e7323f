package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Track{},
	&Run{},
	&Generation{},
	&AgentResult{},
}

// Track is a track a run was evaluated on. Tracks are shared between runs.
type Track struct {
	gorm.Model
	Name         string  `json:"name" gorm:"size:200;uniqueIndex:idx_track_name"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Length       float64 `json:"length"`
	FinishX      float64 `json:"finishX"`
	FinishY      float64 `json:"finishY"`
	FinishSize   float64 `json:"finishSize"`
	SpawnX       float64 `json:"spawnX"`
	SpawnY       float64 `json:"spawnY"`
	SpawnHeading float64 `json:"spawnHeading"`
	SpawnSize    float64 `json:"spawnSize"`
	Runs         []Run
}

func (*Track) TableName() string {
	return "tracks"
}

// Run is one training session.
type Run struct {
	gorm.Model
	Name             string       `json:"name" gorm:"size:200"`
	StartTime        time.Time    `json:"startTime" gorm:"index:idx_run_start"`
	EndTime          sql.NullTime `json:"endTime"`
	PopulationSize   int          `json:"populationSize"`
	TimeLimitSeconds float64      `json:"timeLimitSeconds"`
	Seed             int64        `json:"seed"`
	ExtensionVersion string       `json:"extensionVersion" gorm:"size:64"`
	TrackID          uint         `json:"trackId" gorm:"index:idx_run_track_id"`
	Generations      []Generation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Run) TableName() string {
	return "runs"
}

// Generation holds the aggregate outcome of one generation.
type Generation struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID         uint           `json:"runId" gorm:"uniqueIndex:idx_generation_run_number"`
	Number        int            `json:"number" gorm:"uniqueIndex:idx_generation_run_number"`
	StartedAt     time.Time      `json:"startedAt"`
	DurationMs    int64          `json:"durationMs"`
	Ticks         int            `json:"ticks"`
	BestFitness   float64        `json:"bestFitness"`
	MaxFitness    float64        `json:"maxFitness"`
	AvgFitness    float64        `json:"avgFitness"`
	Crashes       int            `json:"crashes"`
	Finishes      int            `json:"finishes"`
	LeaderIndex   int            `json:"leaderIndex"`
	LeaderSensors datatypes.JSON `json:"leaderSensors"`
	StopReason    string         `json:"stopReason" gorm:"size:32"`
	Agents        []AgentResult  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Generation) TableName() string {
	return "generations"
}

// AgentResult is the final state of one agent in a generation. Path is empty
// unless the generation was a checkpoint.
type AgentResult struct {
	ID           uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	GenerationID uint            `json:"generationId" gorm:"index:idx_agent_generation_id"`
	Index        int             `json:"index" gorm:"column:agent_index"`
	Fitness      float64         `json:"fitness"`
	Alive        bool            `json:"alive"`
	Finished     bool            `json:"finished"`
	Distance     float64         `json:"distance"`
	Speed        float64         `json:"speed"`
	Heading      float64         `json:"heading"`
	SpeedPenalty float64         `json:"speedPenalty"`
	Sensors      datatypes.JSON  `json:"sensors"`
	Path         geom.LineString `json:"path"`
	PathLength   float64         `json:"pathLength"`
}

func (*AgentResult) TableName() string {
	return "agent_results"
}
