package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ironwatch/site/pkg/core"
)

// QueueDepths reports buffered dispatcher queues by command.
type QueueDepths interface {
	QueueDepths() map[string]int
}

// Sink receives every status sample.
type Sink interface {
	WriteStatus(ctx context.Context, s core.SiteStatus) error
}

// Dependencies holds all dependencies for the monitor service. Every field
// is optional.
type Dependencies struct {
	Logger            *slog.Logger
	Sessions          func() int
	Dispatcher        QueueDepths
	MailCommand       string
	Mails             func() (sent, failed int)
	PendingDeliveries func() int
	CacheStats        func() (hits, misses int64)
	PreloadedModels   func() int
	Sink              Sink
	StatusFile        string
	Interval          time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	last      core.SiteStatus
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current status.
func (s *Service) GetStatus() core.SiteStatus {
	st := core.SiteStatus{Time: time.Now().UTC()}
	if s.deps.Sessions != nil {
		st.ActiveSessions = s.deps.Sessions()
	}
	if s.deps.Dispatcher != nil && s.deps.MailCommand != "" {
		st.MailQueue = s.deps.Dispatcher.QueueDepths()[s.deps.MailCommand]
	}
	if s.deps.Mails != nil {
		st.MailsSent, st.MailsFailed = s.deps.Mails()
	}
	if s.deps.PendingDeliveries != nil {
		st.PendingDeliveries = s.deps.PendingDeliveries()
	}
	if s.deps.CacheStats != nil {
		st.CacheHits, st.CacheMisses = s.deps.CacheStats()
	}
	if s.deps.PreloadedModels != nil {
		st.PreloadedModels = s.deps.PreloadedModels()
	}
	return st
}

// Last returns the most recent sample taken by the running monitor.
func (s *Service) Last() core.SiteStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Sample takes one status sample and publishes it to the status file, the
// log and the sink.
func (s *Service) Sample(ctx context.Context) core.SiteStatus {
	st := s.GetStatus()

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}

	s.deps.Logger.Debug("site status",
		"activeSessions", st.ActiveSessions,
		"mailQueue", st.MailQueue,
		"pendingDeliveries", st.PendingDeliveries,
		"cacheHitRatio", st.CacheHitRatio(),
		"preloadedModels", st.PreloadedModels)

	if s.deps.Sink != nil {
		if err := s.deps.Sink.WriteStatus(ctx, st); err != nil {
			s.deps.Logger.Warn("Error writing status sample", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st core.SiteStatus) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
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
		defer close(done)

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-stop
			cancel()
		}()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Sample(ctx)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
