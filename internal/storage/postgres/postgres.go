// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"sync"
	"time"

	"github.com/neatdrive/simulator/internal/database"
	"github.com/neatdrive/simulator/internal/logging"
	"github.com/neatdrive/simulator/internal/model"
	"github.com/neatdrive/simulator/internal/model/convert"
	"github.com/neatdrive/simulator/internal/queue"
	gormstorage "github.com/neatdrive/simulator/internal/storage/gorm"
	"github.com/neatdrive/simulator/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued generations are written.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the postgres storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM/PostgreSQL with queue-based batch writes.
// Run bookkeeping is synchronous, generations are queued.
type Backend struct {
	*gormstorage.Backend
	deps        Dependencies
	generations *queue.Queue[model.Generation]
	stopChan    chan struct{}
	stopOnce    sync.Once
	writer      sync.WaitGroup
	flushMu     sync.Mutex
}

// New creates a new postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:        deps,
		generations: queue.New[model.Generation](),
		stopChan:    make(chan struct{}),
	}
}

// Init connects when no DB was injected, runs schema migration and starts
// the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         b.deps.DB,
		LogManager: b.deps.LogManager,
	})
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.startDBWriter()
	return nil
}

// Close stops the DB writer goroutine and writes anything still queued.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.writer.Wait()
	if b.Backend == nil {
		return nil
	}
	b.Flush()
	return b.Backend.Close()
}

// RecordGeneration converts and queues a generation. The run ID is stamped
// at enqueue time so a run switch cannot misattribute queued rows.
func (b *Backend) RecordGeneration(res *core.GenerationResult) error {
	runID := uint(0)
	if b.Backend != nil {
		runID = b.RunID()
	}
	if runID == 0 {
		return gormstorage.ErrNoRun
	}
	gen := convert.CoreToGeneration(*res)
	gen.RunID = runID
	b.generations.Push(gen)
	return nil
}

// EndRun drains the queue before closing the run.
func (b *Backend) EndRun() error {
	if b.Backend == nil {
		return gormstorage.ErrNoRun
	}
	b.Flush()
	return b.Backend.EndRun()
}

// Pending returns the number of queued generations.
func (b *Backend) Pending() int {
	return b.generations.Len()
}

// Flush writes all queued generations now.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	writeQueue(b.deps.DB, b.generations, "generations", b.deps.LogManager.WriteLog)
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error committing %s: %v", name, err), "ERROR")
		q.Push(items...)
	}
}

// startDBWriter starts the background goroutine that periodically drains the queue into the DB.
func (b *Backend) startDBWriter() {
	b.writer.Add(1)
	go func() {
		defer b.writer.Done()
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.Flush()
			}
		}
	}()
}
