// Package monitor periodically reports the client's status to the log, a
// status file and influx.
package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marsgrid/ticksync/internal/influx"
	"github.com/marsgrid/ticksync/internal/session"
)

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Status     func() session.Status
	Points     PointWriter
	Logger     *slog.Logger
	StatusFile string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
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

// Lines renders st for the status file.
func Lines(st session.Status, now time.Time) []string {
	lines := []string{
		fmt.Sprintf("session:     %s", st.SessionID),
		fmt.Sprintf("address:     %s", st.Address),
		fmt.Sprintf("transport:   %s (%s disconnects)", st.Transport, humanize.Comma(int64(st.Disconnects))),
		fmt.Sprintf("lifecycle:   %s", st.Lifecycle),
		fmt.Sprintf("tick:        %s", tickProgress(st)),
		fmt.Sprintf("entities:    %d agents, %d items, %d barrels", st.Sizes.Agents, st.Sizes.Items, st.Sizes.Barrels),
		fmt.Sprintf("pending:     %d events", st.Pending),
	}
	if st.HasAcked {
		lines = append(lines, fmt.Sprintf("last ack:    %s", humanize.Comma(int64(st.LastAcked))))
	}
	if !st.StartTime.IsZero() {
		lines = append(lines, fmt.Sprintf("started:     %s", humanize.RelTime(st.StartTime, now, "ago", "from now")))
	}
	return lines
}

func tickProgress(st session.Status) string {
	if st.TotalSteps <= 0 {
		return humanize.Comma(int64(st.Tick))
	}
	return fmt.Sprintf("%s / %s", humanize.Comma(int64(st.Tick)), humanize.Comma(int64(st.TotalSteps)))
}

// Report writes one status sample to every configured output.
func (s *Service) Report(statusFile *os.File, now time.Time) {
	st := s.deps.Status()
	logger := s.deps.Logger

	logger.Info("Client status",
		"transport", st.Transport,
		"lifecycle", st.Lifecycle,
		"tick", st.Tick,
		"disconnects", st.Disconnects,
		"agents", st.Sizes.Agents)

	if statusFile != nil {
		if err := statusFile.Truncate(0); err == nil {
			_, _ = statusFile.Seek(0, 0)
			for _, line := range Lines(st, now) {
				_, _ = statusFile.WriteString(line + "\n")
			}
		}
	}

	if s.deps.Points != nil {
		point := influx.ClientStatusPoint(influx.ClientStatus{
			SessionID:   st.SessionID,
			Connection:  st.Transport,
			Lifecycle:   st.Lifecycle,
			Tick:        st.Tick,
			LastAcked:   st.LastAcked,
			Disconnects: st.Disconnects,
			Pending:     st.Pending,
		}, now)
		if err := s.deps.Points.WritePoint(point); err != nil {
			logger.Error("Error writing status point", "error", err)
		}
	}
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
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		var statusFile *os.File
		if s.deps.StatusFile != "" {
			f, err := os.Create(s.deps.StatusFile)
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				statusFile = f
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				s.Report(statusFile, time.Now())
				return
			case now := <-ticker.C:
				s.Report(statusFile, now)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor after a final report.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
