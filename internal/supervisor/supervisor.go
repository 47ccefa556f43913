// Package supervisor runs the pipeline workers as goroutines, recovers their
// panics, and restarts dead workers with exponential backoff. Restart pacing
// keeps a persistently failing worker from thrashing; a stable run resets
// the backoff so a transient outage does not penalize the next incident.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/spreadscan/internal/telemetry"
)

// Status is the lifecycle state of a supervised worker.
type Status string

const (
	// StatusPending indicates the worker is registered but not yet started.
	StatusPending Status = "pending"
	// StatusStarting indicates the worker is about to run.
	StatusStarting Status = "starting"
	// StatusRunning indicates the worker is executing.
	StatusRunning Status = "running"
	// StatusFailed indicates the worker died and awaits restart.
	StatusFailed Status = "failed"
	// StatusStopped indicates the worker ended with the global shutdown.
	StatusStopped Status = "stopped"
)

// Worker is a restartable unit of work. Run blocks until the worker dies or
// ctx ends; a nil return with a live context still counts as a death.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config tunes restart pacing and shutdown behaviour.
type Config struct {
	RestartInitialInterval time.Duration
	RestartMaxInterval     time.Duration
	StableAfter            time.Duration
	ShutdownGrace          time.Duration
	Logger                 zerolog.Logger
	Metrics                *telemetry.PipelineMetrics
}

func (c Config) withDefaults() Config {
	if c.RestartInitialInterval <= 0 {
		c.RestartInitialInterval = 500 * time.Millisecond
	}
	if c.RestartMaxInterval <= 0 {
		c.RestartMaxInterval = 30 * time.Second
	}
	if c.StableAfter <= 0 {
		c.StableAfter = 30 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	return c
}

// WorkerInfo is a point-in-time view of one worker's state.
type WorkerInfo struct {
	Status   Status
	Restarts uint64
	LastErr  error
}

// Supervisor owns the worker goroutines for one pipeline run.
type Supervisor struct {
	cfg Config

	mu     sync.RWMutex
	states map[string]*workerState
}

type workerState struct {
	status   Status
	restarts uint64
	lastErr  error
}

// New creates a supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		states: make(map[string]*workerState),
	}
}

// Run starts every worker and blocks until ctx is cancelled. On shutdown it
// waits up to the grace period for workers to join and then abandons
// laggards with an error.
func (s *Supervisor) Run(ctx context.Context, workers ...Worker) error {
	if len(workers) == 0 {
		return fmt.Errorf("supervisor: no workers to run")
	}
	s.mu.Lock()
	for _, worker := range workers {
		if worker.Name == "" || worker.Run == nil {
			s.mu.Unlock()
			return fmt.Errorf("supervisor: worker needs a name and a run function")
		}
		if _, exists := s.states[worker.Name]; exists {
			s.mu.Unlock()
			return fmt.Errorf("supervisor: duplicate worker %q", worker.Name)
		}
		s.states[worker.Name] = &workerState{status: StatusPending}
	}
	s.mu.Unlock()

	var wg conc.WaitGroup
	for _, worker := range workers {
		w := worker
		wg.Go(func() { s.superviseWorker(ctx, w) })
	}

	<-ctx.Done()

	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		s.cfg.Logger.Info().Msg("all workers stopped")
		return nil
	case <-time.After(s.cfg.ShutdownGrace):
		s.cfg.Logger.Error().
			Dur("grace", s.cfg.ShutdownGrace).
			Msg("abandoning workers that missed the shutdown grace")
		return fmt.Errorf("supervisor: workers still running after %s grace", s.cfg.ShutdownGrace)
	}
}

// superviseWorker drives one worker's start/fail/restart cycle.
func (s *Supervisor) superviseWorker(ctx context.Context, worker Worker) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = s.cfg.RestartInitialInterval
	backoffCfg.MaxInterval = s.cfg.RestartMaxInterval

	for {
		if ctx.Err() != nil {
			s.setStatus(worker.Name, StatusStopped, nil)
			return
		}
		s.setStatus(worker.Name, StatusStarting, nil)
		started := time.Now()
		err := s.invoke(ctx, worker)
		if ctx.Err() != nil {
			s.setStatus(worker.Name, StatusStopped, nil)
			return
		}

		if err == nil {
			err = fmt.Errorf("worker %s exited unexpectedly", worker.Name)
		}
		s.setStatus(worker.Name, StatusFailed, err)
		if time.Since(started) >= s.cfg.StableAfter {
			backoffCfg.Reset()
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = s.cfg.RestartMaxInterval
		}
		s.cfg.Logger.Error().
			Err(err).
			Str("worker", worker.Name).
			Dur("restart_in", sleep).
			Msg("worker died, restarting")
		s.cfg.Metrics.RecordWorkerRestart(ctx, worker.Name)
		s.bumpRestarts(worker.Name)

		select {
		case <-ctx.Done():
			s.setStatus(worker.Name, StatusStopped, nil)
			return
		case <-time.After(sleep):
		}
	}
}

// invoke runs the worker once, converting panics into errors.
func (s *Supervisor) invoke(ctx context.Context, worker Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panic: %v", worker.Name, r)
		}
	}()
	s.setStatus(worker.Name, StatusRunning, nil)
	return worker.Run(ctx)
}

func (s *Supervisor) setStatus(name string, status Status, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[name]
	if !ok {
		return
	}
	state.status = status
	if lastErr != nil {
		state.lastErr = lastErr
	}
}

func (s *Supervisor) bumpRestarts(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[name]; ok {
		state.restarts++
	}
}

// Info returns the current state of one worker.
func (s *Supervisor) Info(name string) (WorkerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[name]
	if !ok {
		return WorkerInfo{}, false
	}
	return WorkerInfo{Status: state.status, Restarts: state.restarts, LastErr: state.lastErr}, true
}

// Workers returns the state of every registered worker keyed by name.
func (s *Supervisor) Workers() map[string]WorkerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]WorkerInfo, len(s.states))
	for name, state := range s.states {
		out[name] = WorkerInfo{Status: state.status, Restarts: state.restarts, LastErr: state.lastErr}
	}
	return out
}
