// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by RunByName for names that were never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is a unit of background work.
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the observable state of a registered job.
type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures"`
	Running      bool       `json:"running"`
}

type entry struct {
	job      Job
	id       cron.EntryID
	schedule string

	// Guarded by Scheduler.mu
	lastStarted  time.Time
	lastDuration time.Duration
	lastErr      error
	runs         int
	failures     int
	running      bool
}

// Scheduler owns the cron runner and the registry of jobs. A job whose
// previous tick is still running is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a scheduler using six-field cron specs (seconds first).
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]*entry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop halts ticking and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under its name. Registering a second job with the
// same name replaces the first.
//
//	"0 */30 * * * *"  every 30 minutes
//	"0 30 6 * * *"    06:30 daily
//	"@every 30s"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	name := job.Name()
	id, err := s.cron.AddFunc(schedule, func() {
		_ = s.execute(name, "cron")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old.id)
	}
	s.entries[name] = &entry{job: job, id: id, schedule: schedule}
	s.mu.Unlock()

	s.log.Info().Str("job", name).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// RunByName runs a registered job now, on the caller's goroutine.
func (s *Scheduler) RunByName(name string) error {
	return s.execute(name, "manual")
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.entries))
	for name, e := range s.entries {
		st := JobStatus{
			Name:     name,
			Schedule: e.schedule,
			Runs:     e.runs,
			Failures: e.failures,
			Running:  e.running,
		}
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
		if !e.lastStarted.IsZero() {
			started := e.lastStarted
			st.LastStarted = &started
			st.LastDuration = e.lastDuration.String()
		}
		if e.lastErr != nil {
			st.LastError = e.lastErr.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(name, trigger string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	e.running = true
	e.lastStarted = time.Now()
	job := e.job
	s.mu.Unlock()

	log := s.log.With().Str("job", name).Str("trigger", trigger).Logger()
	log.Debug().Msg("Running job")

	start := time.Now()
	err := job.Run()
	elapsed := time.Since(start)

	s.mu.Lock()
	e.running = false
	e.lastDuration = elapsed
	e.lastErr = err
	e.runs++
	if err != nil {
		e.failures++
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("Job failed")
		return err
	}
	log.Debug().Dur("duration", elapsed).Msg("Job completed")
	return nil
}
