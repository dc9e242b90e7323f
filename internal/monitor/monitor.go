// Package monitor periodically writes the training status to a file so a
// long run can be watched without tailing logs.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/neatdrive/simulator/internal/logging"
	"github.com/neatdrive/simulator/internal/report"
	"github.com/neatdrive/simulator/internal/run"
)

// DefaultInterval is the status refresh period.
const DefaultInterval = time.Second

// Status is the snapshot written to the status file.
type Status struct {
	Time          time.Time `json:"time"`
	RunID         uint      `json:"runId"`
	RunName       string    `json:"runName"`
	Track         string    `json:"track"`
	Generation    int       `json:"generation"`
	Recorded      int       `json:"recordedGenerations"`
	BestFitness   float64   `json:"bestFitness"`
	AvgFitness    float64   `json:"avgFitness"`
	Crashes       int       `json:"crashes"`
	Finishes      int       `json:"finishes"`
	PendingWrites int       `json:"pendingWrites"`
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	RunContext *run.Context
	History    *report.History
	// Pending returns the number of queued storage writes. Optional.
	Pending    func() int
	StatusPath string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus assembles the current status.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:       time.Now(),
		Generation: s.deps.RunContext.GetGeneration(),
	}
	if r := s.deps.RunContext.GetRun(); r != nil {
		st.RunID = r.ID
		st.RunName = r.Name
	}
	if t := s.deps.RunContext.GetTrack(); t != nil {
		st.Track = t.Name
	}
	if s.deps.History != nil {
		st.Recorded = s.deps.History.Len()
		if latest, ok := s.deps.History.Latest(); ok {
			st.BestFitness = latest.BestFitness
			st.AvgFitness = latest.AvgFitness
			st.Crashes = latest.Crashes
			st.Finishes = latest.Finishes
		}
	}
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending()
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	logger := s.deps.LogManager.Logger()
	logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and writes a final status.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.WriteStatus(); err != nil {
		s.deps.LogManager.WriteLog("monitor", err.Error(), "ERROR")
	}
}
