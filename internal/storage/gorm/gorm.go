// Package gormstorage implements storage.Backend on any gorm dialect with
// synchronous writes. The sqlite and postgres backends build on it.
package gormstorage

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/neatdrive/simulator/internal/database"
	"github.com/neatdrive/simulator/internal/logging"
	"github.com/neatdrive/simulator/internal/model"
	"github.com/neatdrive/simulator/internal/model/convert"
	"github.com/neatdrive/simulator/pkg/core"
	"gorm.io/gorm"
)

// ErrNoRun is returned when recording before StartRun.
var ErrNoRun = errors.New("no run started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps  Dependencies
	runID atomic.Uint64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	b.deps.LogManager.WriteLog("gorm:Init", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.LogManager.WriteLog("gorm:Init", "Database setup complete", "INFO")
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (b *Backend) Close() error {
	return nil
}

// StartRun gets or creates the track by name, then inserts the run.
func (b *Backend) StartRun(coreRun *core.Run, coreTrack *core.Track) error {
	db := b.deps.DB

	gormTrack := convert.CoreToTrack(*coreTrack)
	gormTrack.ID = 0
	var stored model.Track
	if err := db.Where("name = ?", gormTrack.Name).Assign(gormTrack).FirstOrCreate(&stored).Error; err != nil {
		return fmt.Errorf("failed to get or insert track: %w", err)
	}

	gormRun := convert.CoreToRun(*coreRun, stored.ID)
	gormRun.ID = 0
	if err := db.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert new run: %w", err)
	}

	coreTrack.ID = stored.ID
	coreRun.ID = gormRun.ID
	b.runID.Store(uint64(gormRun.ID))

	b.deps.LogManager.WriteLog("gorm:StartRun", fmt.Sprintf("Run %d started on track %q", gormRun.ID, stored.Name), "INFO")
	return nil
}

// RunID returns the ID of the current run, 0 before StartRun.
func (b *Backend) RunID() uint {
	return uint(b.runID.Load())
}

// RecordGeneration inserts the generation and its agents.
func (b *Backend) RecordGeneration(res *core.GenerationResult) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	gen := convert.CoreToGeneration(*res)
	gen.RunID = runID
	if err := b.deps.DB.Create(&gen).Error; err != nil {
		return fmt.Errorf("failed to insert generation %d: %w", res.Generation, err)
	}
	return nil
}

// EndRun stamps the end time of the current run.
func (b *Backend) EndRun() error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	err := b.deps.DB.Model(&model.Run{}).Where("id = ?", runID).Update("end_time", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to end run %d: %w", runID, err)
	}
	b.runID.Store(0)
	return nil
}
