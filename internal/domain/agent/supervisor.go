package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/infrastructure/config"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/monitoring"
	"github.com/luminabrowser/lumina/host/internal/shared/notify"
)

// State describes the supervised process lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateRestarting State = "restarting"
)

// Status is a point-in-time snapshot of the supervised process.
type Status struct {
	State      State  `json:"state"`
	PID        int    `json:"pid,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
	Restarts   int    `json:"restarts"`
}

// StoppedPayload is pushed on voiceAgent.stopped.
type StoppedPayload struct {
	Code       int  `json:"code"`
	Expected   bool `json:"expected"`
	Restarting bool `json:"restarting"`
}

// Supervisor runs the voice agent as a single child process. At most one
// instance is ever live; an unexpected exit schedules a restart after a
// fixed delay, a requested stop does not.
type Supervisor struct {
	cfg     config.AgentConfig
	sink    notify.Sink
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu            sync.Mutex
	state         State
	cmd           *exec.Cmd
	runDone       chan struct{}
	generation    int
	restarts      int
	credential    string
	instanceID    string
	stopRequested bool
	shuttingDown  bool
	restartTimer  *time.Timer
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(cfg config.AgentConfig, sink notify.Sink, logger *logging.Logger) *Supervisor {
	if sink == nil {
		sink = notify.Discard
	}
	return &Supervisor{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Named("agent"),
		state:  StateIdle,
	}
}

// WithMetrics attaches process metrics.
func (s *Supervisor) WithMetrics(m *monitoring.Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Start launches the agent process. Calling Start while the process is
// already live is a no-op that returns the current status, so the UI can
// re-request the agent without spawning duplicates.
func (s *Supervisor) Start(credential string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return s.statusLocked(), fmt.Errorf("supervisor is shutting down")
	}
	if s.state == StateRunning {
		return s.statusLocked(), nil
	}
	// A stopping process is still live; starting now would give it a
	// sibling. The caller retries once the stop resolves.
	if s.state == StateStopping {
		return s.statusLocked(), fmt.Errorf("agent is stopping")
	}

	s.cancelRestartLocked()
	s.stopRequested = false
	if credential != "" {
		s.credential = credential
	}
	if err := s.startLocked(); err != nil {
		return s.statusLocked(), err
	}
	return s.statusLocked(), nil
}

// Stop terminates the agent process and suppresses the restart that an
// exit would otherwise schedule. It reports whether a live process was
// actually stopped, so the UI can tell a real stop from a no-op.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	s.stopRequested = true
	s.cancelRestartLocked()

	if s.state == StateRestarting {
		s.state = StateStopped
		s.mu.Unlock()
		return false
	}
	if s.state != StateRunning || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return false
	}

	s.state = StateStopping
	proc := s.cmd.Process
	done := s.runDone
	s.mu.Unlock()

	s.logger.Info("stopping agent", zap.Int("pid", proc.Pid))
	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(time.Duration(s.cfg.StopTimeoutMs) * time.Millisecond):
		s.logger.Warn("agent ignored SIGTERM, killing", zap.Int("pid", proc.Pid))
		_ = proc.Kill()
		<-done
	}
	return true
}

// Shutdown force-stops any live process and prevents further starts.
// Unlike Stop it never waits out the graceful window: the whole host is
// going down, so the process is killed outright.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.stopRequested = true
	s.cancelRestartLocked()

	if s.state == StateRestarting {
		s.state = StateStopped
	}
	if s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return
	}

	s.state = StateStopping
	proc := s.cmd.Process
	done := s.runDone
	s.mu.Unlock()

	s.logger.Info("killing agent for shutdown", zap.Int("pid", proc.Pid))
	_ = proc.Kill()
	<-done
}

// Status returns the current process snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Supervisor) statusLocked() Status {
	st := Status{State: s.state, Restarts: s.restarts}
	if s.state == StateRunning && s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.InstanceID = s.instanceID
	}
	return st
}

func (s *Supervisor) startLocked() error {
	s.instanceID = uuid.NewString()
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Env = s.buildEnv()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.state = StateIdle
		return fmt.Errorf("failed to start agent %q: %w", s.cfg.Command, err)
	}

	s.cmd = cmd
	s.state = StateRunning
	s.generation++
	s.runDone = make(chan struct{})
	if s.metrics != nil {
		s.metrics.AgentRunning.Set(1)
	}
	s.logger.Info("agent started",
		zap.String("command", s.cfg.Command),
		zap.Int("pid", cmd.Process.Pid))

	go s.readStdout(stdout)
	go s.readStderr(stderr)
	go s.monitor(cmd, s.generation, s.runDone)
	return nil
}

// buildEnv injects the AI credential under the common aliases so the
// agent can pick whichever name its SDK expects.
func (s *Supervisor) buildEnv() []string {
	env := os.Environ()
	env = append(env, "LUMINA_AGENT_INSTANCE="+s.instanceID)
	if s.credential == "" {
		return env
	}
	for _, key := range []string{"LUMINA_AI_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "AI_API_KEY"} {
		env = append(env, key+"="+s.credential)
	}
	return env
}

// readStdout forwards agent output line by line. Lines that parse as JSON
// objects are structured events; everything else is raw output.
func (s *Supervisor) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event map[string]interface{}
		if strings.HasPrefix(line, "{") && sonic.UnmarshalString(line, &event) == nil {
			s.sink.Notify(notify.TopicAgentEvent, event)
		} else {
			s.sink.Notify(notify.TopicAgentOutput, line)
		}
	}
}

func (s *Supervisor) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.sink.Notify(notify.TopicAgentError, line)
	}
}

// monitor waits for the process to exit, then either settles into stopped
// or schedules one restart.
func (s *Supervisor) monitor(cmd *exec.Cmd, generation int, done chan struct{}) {
	err := cmd.Wait()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Settle state before releasing waiters in Stop.
	defer close(done)
	if generation != s.generation {
		return
	}
	if s.metrics != nil {
		s.metrics.AgentRunning.Set(0)
	}
	s.cmd = nil

	expected := s.stopRequested || s.shuttingDown
	if expected {
		s.state = StateStopped
		s.logger.Info("agent stopped", zap.Int("code", code))
		s.sink.Notify(notify.TopicAgentStopped, StoppedPayload{Code: code, Expected: true})
		return
	}

	s.state = StateRestarting
	s.logger.Warn("agent exited unexpectedly, scheduling restart",
		zap.Int("code", code),
		zap.Int("delay_ms", s.cfg.RestartDelayMs))
	s.sink.Notify(notify.TopicAgentStopped, StoppedPayload{Code: code, Restarting: true})

	delay := time.Duration(s.cfg.RestartDelayMs) * time.Millisecond
	s.restartTimer = time.AfterFunc(delay, s.restart)
}

func (s *Supervisor) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRestarting || s.stopRequested || s.shuttingDown {
		return
	}
	s.restarts++
	if s.metrics != nil {
		s.metrics.AgentRestarts.Inc()
	}
	if err := s.startLocked(); err != nil {
		s.logger.Error("agent restart failed", zap.Error(err))
		s.state = StateIdle
	}
}

func (s *Supervisor) cancelRestartLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}
