// Package supervisor runs the external scrape worker and captures its output.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"profilescraper/internal/core/model"
	"profilescraper/internal/logger"
)

// DefaultWaitDelay bounds how long output pipes may stay open after the
// worker exited or was killed, e.g. when a grandchild inherited them.
const DefaultWaitDelay = 2 * time.Second

// Command describes the worker executable. The profile is appended to Args as
// a single discrete argument.
type Command struct {
	Path    string
	Args    []string
	Env     []string
	Dir     string
	Timeout time.Duration
}

// Outcome is what a finished run leaves behind. On timeout Stdout and Stderr
// hold whatever was captured before the worker was killed.
type Outcome struct {
	Job    *model.Job
	Stdout []byte
	Stderr []byte
}

type Supervisor struct {
	cmd       Command
	now       func() time.Time
	waitDelay time.Duration
	log       *logger.Logger
}

type Option func(*Supervisor)

// WithClock replaces time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func WithWaitDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.waitDelay = d }
}

func New(cmd Command, opts ...Option) *Supervisor {
	if cmd.Timeout <= 0 {
		cmd.Timeout = model.DefaultTimeout
	}
	s := &Supervisor{cmd: cmd, now: time.Now, waitDelay: DefaultWaitDelay, log: logger.New("Supervisor")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Timeout is the wall clock limit applied to every run.
func (s *Supervisor) Timeout() time.Duration { return s.cmd.Timeout }

// Run spawns the worker for profile and blocks until it exits or the timeout
// elapses. Output chunks are forwarded to sink (if not nil) as they arrive.
// The returned Outcome is never nil, even when err is not.
//
// Errors carry model.ErrLaunch, model.ErrTimeout or model.ErrProcess.
func (s *Supervisor) Run(ctx context.Context, profile string, sink Sink) (*Outcome, error) {
	job := model.NewJob(profile)
	out := &Outcome{Job: job}
	log := s.log.Job(profile)

	if profile == "" {
		return out, model.NewError(model.ErrInvalidRequest, "profile is empty", nil)
	}
	_ = job.Transition(model.StateLaunching)

	runCtx, cancel := context.WithTimeout(ctx, s.cmd.Timeout)
	defer cancel()

	args := append(append([]string(nil), s.cmd.Args...), profile)
	cmd := exec.CommandContext(runCtx, s.cmd.Path, args...)
	cmd.Dir = s.cmd.Dir
	if len(s.cmd.Env) > 0 {
		cmd.Env = s.cmd.Env
	}
	cmd.WaitDelay = s.waitDelay

	stdout := newCapture(StreamStdout, sink)
	stderr := newCapture(StreamStderr, sink)
	// distinct writers: exec drains each pipe in its own goroutine
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = job.Transition(model.StateFailed)
		job.Error = err.Error()
		log.LogErrorf("launching %s: %v", s.cmd.Path, err)
		return out, model.NewError(model.ErrLaunch, s.cmd.Path, err)
	}
	job.Start(s.now(), s.cmd.Timeout)
	_ = job.Transition(model.StateRunning)
	log.LogInfof("worker started (pid %d, deadline %s)", cmd.Process.Pid, job.Deadline.Format(time.RFC3339))

	waitErr := cmd.Wait()

	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.Bytes()
	job.Stdout, job.Stderr = out.Stdout, out.Stderr
	job.UpdatedAt = s.now()
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		job.ExitCode = &code
	}

	// a clean exit whose pipes were held open by a leftover child
	if errors.Is(waitErr, exec.ErrWaitDelay) && job.ExitCode != nil && *job.ExitCode == 0 {
		log.LogWarnf("worker exited but its output stayed open for %s; a child process may still be running", s.waitDelay)
		waitErr = nil
	}

	switch {
	case waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		_ = job.Transition(model.StateTimedOut)
		job.Error = model.ErrTimeout.Error()
		log.LogWarnf("worker killed after %s", s.cmd.Timeout)
		return out, model.NewError(model.ErrTimeout, fmt.Sprintf("after %s", s.cmd.Timeout), waitErr).
			WithDetail(diagnostic(out))
	case waitErr != nil:
		_ = job.Transition(model.StateFailed)
		job.Error = waitErr.Error()
		log.LogWarnf("worker failed: %v", waitErr)
		return out, model.NewError(model.ErrProcess, exitDescription(job), waitErr).
			WithDetail(strings.TrimSpace(string(out.Stderr)))
	}

	_ = job.Transition(model.StateSucceeded)
	log.LogInfof("worker finished (%d bytes stdout)", len(out.Stdout))
	return out, nil
}

func exitDescription(job *model.Job) string {
	if job.ExitCode == nil {
		return "no exit code"
	}
	return fmt.Sprintf("exit code %d", *job.ExitCode)
}

// diagnostic prefers stderr and falls back to partial stdout.
func diagnostic(out *Outcome) string {
	if d := strings.TrimSpace(string(out.Stderr)); d != "" {
		return d
	}
	return strings.TrimSpace(string(out.Stdout))
}
