// Package supervisor owns the single engine process: it starts it, relays
// its output, announces liveness and terminates its process tree.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	castlog "github.com/remote-agent-terminal/engine-relay/internal/logger"
	"github.com/remote-agent-terminal/engine-relay/internal/model"
	"github.com/remote-agent-terminal/engine-relay/internal/proc"
	"github.com/remote-agent-terminal/engine-relay/internal/stream"
)

var logger = log.New(os.Stderr, "[supervisor] ", log.LstdFlags)

// StartResult is the outcome of Start.
type StartResult string

const (
	StartStarted        StartResult = "started"
	StartAlreadyRunning StartResult = "already_running"
	StartBinaryNotFound StartResult = "binary_not_found"
)

// StopResult is the outcome of Stop. Stop always succeeds.
type StopResult string

const StopStopped StopResult = "stopped"

// State is the supervisor's lifecycle state as reported by Status.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// DefaultReaderGrace bounds how long readers may outlive the process.
const DefaultReaderGrace = 2 * time.Second

// Publisher receives every message produced for a run. It must not block.
type Publisher interface {
	Publish(msg model.LogMessage)
}

// RunStore persists run records.
type RunStore interface {
	Create(ctx context.Context, run *model.Run) error
	Finish(ctx context.Context, id string, status model.RunStatus, exitCode *int, lastLine string) error
}

// Config holds configuration for the supervisor.
type Config struct {
	// EngineName appears in heartbeat text.
	EngineName string

	// TranscriptDir receives one asciicast file per run. Empty disables transcripts.
	TranscriptDir string

	HeartbeatInterval time.Duration

	// ReaderGrace is how long after exit the readers may keep draining
	// before their pipes are closed underneath them.
	ReaderGrace time.Duration

	DedupePeek bool

	// EchoOutput writes every relayed line to the server log.
	EchoOutput bool

	// Env and Dir are passed to the engine process.
	Env []string
	Dir string
}

// Status describes the supervised process.
type Status struct {
	State     State      `json:"state"`
	PID       int        `json:"pid,omitempty"`
	RunID     string     `json:"runId,omitempty"`
	Binary    string     `json:"binary,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// managedProcess is one supervised engine run.
type managedProcess struct {
	proc       *proc.Process
	run        *model.Run
	transcript *castlog.Transcript

	cancelHeartbeat context.CancelFunc
	stopped         atomic.Bool
	readers         sync.WaitGroup
	finished        chan struct{}

	mu       sync.Mutex
	lastLine string
}

// Supervisor manages at most one engine process at a time.
type Supervisor struct {
	cfg  Config
	pub  Publisher
	runs RunStore

	mu      sync.Mutex
	current *managedProcess
}

// New creates a Supervisor. runs may be nil, in which case no history is kept.
func New(cfg Config, pub Publisher, runs RunStore) *Supervisor {
	if cfg.EngineName == "" {
		cfg.EngineName = "Engine"
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReaderGrace <= 0 {
		cfg.ReaderGrace = DefaultReaderGrace
	}
	return &Supervisor{
		cfg:  cfg,
		pub:  pub,
		runs: runs,
	}
}

// Start launches binary with args unless a process is already alive.
// A binary that does not resolve to an executable yields StartBinaryNotFound
// and an error wrapping model.ErrBinaryNotFound. Other spawn failures return
// an empty result and the error.
func (s *Supervisor) Start(ctx context.Context, binary string, args []string) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if !s.current.proc.Exited() {
			return StartAlreadyRunning, nil
		}
		s.current = nil
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		logger.Printf("Binary %s not found: %v", binary, err)
		return StartBinaryNotFound, fmt.Errorf("%w: %s", model.ErrBinaryNotFound, binary)
	}

	runID := uuid.New().String()
	mp := &managedProcess{
		run: &model.Run{
			ID:        runID,
			Binary:    path,
			Args:      args,
			Status:    model.RunStatusRunning,
			StartedAt: time.Now(),
		},
		finished: make(chan struct{}),
	}

	if s.cfg.TranscriptDir != "" {
		transcriptPath := filepath.Join(s.cfg.TranscriptDir, runID+".cast")
		transcript, err := castlog.NewTranscript(transcriptPath)
		if err != nil {
			logger.Printf("Transcript disabled for run %s: %v", runID, err)
		} else if err := transcript.WriteHeader(s.cfg.EngineName + " " + runID[:8]); err != nil {
			logger.Printf("Transcript disabled for run %s: %v", runID, err)
			transcript.Close()
		} else {
			mp.transcript = transcript
			mp.run.TranscriptPath = transcriptPath
		}
	}

	logger.Printf("Starting: %s %s", path, strings.Join(args, " "))
	p, err := proc.Start(proc.StartOptions{
		Command: path,
		Args:    args,
		Env:     s.cfg.Env,
		Dir:     s.cfg.Dir,
	})
	if err != nil {
		if mp.transcript != nil {
			mp.transcript.Close()
			os.Remove(mp.run.TranscriptPath)
		}
		return "", fmt.Errorf("failed to start engine: %w", err)
	}

	pid := p.PID()
	mp.proc = p
	mp.run.PID = &pid

	if s.runs != nil {
		if err := s.runs.Create(ctx, mp.run); err != nil {
			logger.Printf("Failed to record run %s: %v", runID, err)
		}
	}

	opts := stream.Options{DedupePeek: s.cfg.DedupePeek, Echo: s.cfg.EchoOutput}
	for _, r := range []*stream.Reader{
		stream.NewReader(p.Stdout(), model.SourceOut, mp.emitter(s.pub), opts),
		stream.NewReader(p.Stderr(), model.SourceErr, mp.emitter(s.pub), opts),
	} {
		mp.readers.Add(1)
		go func(r *stream.Reader) {
			defer mp.readers.Done()
			if err := r.Run(); err != nil {
				logger.Printf("Reader %s ended: %v", r.Source(), err)
			}
		}(r)
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	mp.cancelHeartbeat = cancel
	hb := NewHeartbeat(s.cfg.EngineName, s.cfg.HeartbeatInterval, func() bool { return s.aliveFor(mp) }, mp.emitter(s.pub))
	go hb.Run(hbCtx)

	s.current = mp
	go s.watch(mp)

	return StartStarted, nil
}

// watch waits for the process to exit, lets the readers drain, then
// finalizes the run record.
func (s *Supervisor) watch(mp *managedProcess) {
	defer close(mp.finished)

	code, waitErr := mp.proc.ExitCode()
	mp.cancelHeartbeat()
	s.release(mp)

	drained := make(chan struct{})
	go func() {
		mp.readers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.cfg.ReaderGrace):
		// A grandchild that escaped the kill still holds the pipe
		logger.Printf("Readers of run %s still open after %s, closing pipes", mp.run.ID, s.cfg.ReaderGrace)
		if err := mp.proc.CloseOutput(); err != nil {
			logger.Printf("Failed to close pipes of run %s: %v", mp.run.ID, err)
		}
		<-drained
	}
	mp.proc.CloseOutput()

	status := model.RunStatusExited
	switch {
	case mp.stopped.Load():
		status = model.RunStatusStopped
	case waitErr != nil:
		status = model.RunStatusFailed
		logger.Printf("Waiting on run %s failed: %v", mp.run.ID, waitErr)
	case code != 0:
		status = model.RunStatusFailed
	}

	if !mp.stopped.Load() {
		logger.Printf("Engine exited with code %d", code)
		mp.emitter(s.pub)(model.NewLogMessage(model.SourceStatus, fmt.Sprintf("engine exited with code %d", code)))
	}

	if mp.transcript != nil {
		if err := mp.transcript.Close(); err != nil {
			logger.Printf("Failed to close transcript of run %s: %v", mp.run.ID, err)
		}
	}

	if s.runs != nil {
		if err := s.runs.Finish(context.Background(), mp.run.ID, status, &code, mp.LastLine()); err != nil {
			logger.Printf("Failed to finish run %s: %v", mp.run.ID, err)
		}
	}
}

// Stop kills the process tree if a process is tracked and waits for it to
// exit until ctx is done. Termination failures are logged, never returned.
func (s *Supervisor) Stop(ctx context.Context) StopResult {
	s.mu.Lock()
	mp := s.current
	s.current = nil
	s.mu.Unlock()

	if mp == nil {
		return StopStopped
	}

	mp.stopped.Store(true)
	mp.cancelHeartbeat()

	logger.Printf("Stopping engine (pid %d)", mp.proc.PID())
	if err := mp.proc.KillTree(); err != nil {
		logger.Printf("Error killing process: %v", err)
	}

	select {
	case <-mp.proc.Done():
	case <-ctx.Done():
		logger.Printf("Engine pid %d did not exit before stop deadline", mp.proc.PID())
	}

	return StopStopped
}

// Shutdown kills any tracked process and waits, until ctx is done, for its
// run to be finalized. Every failure is swallowed.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	mp := s.current
	s.mu.Unlock()

	s.Stop(ctx)

	if mp == nil {
		return
	}
	select {
	case <-mp.finished:
	case <-ctx.Done():
	}
}

// IsAlive reports, without blocking, whether the tracked process is running.
// Observing that it exited on its own releases it.
func (s *Supervisor) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	if s.current.proc.Exited() {
		s.current = nil
		return false
	}
	return true
}

// Status returns the current state of the supervisor.
func (s *Supervisor) Status() Status {
	if !s.IsAlive() {
		return Status{State: StateIdle}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mp := s.current
	if mp == nil {
		return Status{State: StateIdle}
	}
	startedAt := mp.run.StartedAt
	return Status{
		State:     StateRunning,
		PID:       mp.proc.PID(),
		RunID:     mp.run.ID,
		Binary:    mp.run.Binary,
		StartedAt: &startedAt,
	}
}

// aliveFor reports whether mp is still the tracked, running process.
func (s *Supervisor) aliveFor(mp *managedProcess) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != mp {
		return false
	}
	if mp.proc.Exited() {
		s.current = nil
		return false
	}
	return true
}

// release drops mp if it is still the tracked process.
func (s *Supervisor) release(mp *managedProcess) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == mp {
		s.current = nil
	}
}

// emitter returns the function every message of this run passes through.
func (mp *managedProcess) emitter(pub Publisher) func(model.LogMessage) {
	return func(msg model.LogMessage) {
		if msg.Source == model.SourceOut || msg.Source == model.SourceErr {
			mp.mu.Lock()
			mp.lastLine = msg.Format()
			mp.mu.Unlock()
		}

		if mp.transcript != nil {
			if err := mp.transcript.Record(msg); err != nil && !errors.Is(err, os.ErrClosed) {
				logger.Printf("Failed to record transcript line: %v", err)
			}
		}

		pub.Publish(msg)
	}
}

// LastLine returns the most recent OUT or ERR line of the run.
func (mp *managedProcess) LastLine() string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.lastLine
}
