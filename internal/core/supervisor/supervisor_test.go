package supervisor_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"profilescraper/internal/core/model"
	"profilescraper/internal/core/supervisor"
)

func shell(t *testing.T, script string, timeout time.Duration) supervisor.Command {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	// "worker" becomes $0, the profile $1
	return supervisor.Command{
		Path:    sh,
		Args:    []string{"-c", script, "worker"},
		Timeout: timeout,
	}
}

func TestRunSucceeded(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := supervisor.New(
		shell(t, `echo "out $1"; echo warn 1>&2`, time.Minute),
		supervisor.WithClock(func() time.Time { return now }),
	)

	out, err := s.Run(t.Context(), "alice", nil)
	require.NoError(t, err)
	require.Equal(t, model.StateSucceeded, out.Job.State)
	require.Equal(t, "out alice\n", string(out.Stdout))
	require.Equal(t, "warn\n", string(out.Stderr))
	require.NotNil(t, out.Job.ExitCode)
	require.Equal(t, 0, *out.Job.ExitCode)
	require.Equal(t, now, out.Job.StartedAt)
	require.Equal(t, now.Add(time.Minute), out.Job.Deadline)
}

func TestRunProfileIsSingleArgument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cmd := shell(t, `printf '%s|%s' "$#" "$1"`, time.Minute)
	cmd.Dir = dir
	s := supervisor.New(cmd)

	profile := "alice; touch pwned $(touch pwned2)"
	out, err := s.Run(t.Context(), profile, nil)
	require.NoError(t, err)
	require.Equal(t, "1|"+profile, string(out.Stdout))
	require.NoFileExists(t, filepath.Join(dir, "pwned"))
	require.NoFileExists(t, filepath.Join(dir, "pwned2"))
}

func TestRunProcessError(t *testing.T) {
	t.Parallel()
	s := supervisor.New(shell(t, `echo "login required" 1>&2; exit 1`, time.Minute))

	out, err := s.Run(t.Context(), "alice", nil)
	require.ErrorIs(t, err, model.ErrProcess)
	require.Equal(t, "login required", model.DetailOf(err))
	require.Equal(t, model.StateFailed, out.Job.State)
	require.Equal(t, 1, *out.Job.ExitCode)
}

func TestRunLeftoverChildHoldsPipes(t *testing.T) {
	t.Parallel()
	// the background sleep inherits stdout and outlives the worker
	s := supervisor.New(shell(t, `sleep 2 & echo done`, time.Minute),
		supervisor.WithWaitDelay(100*time.Millisecond))

	start := time.Now()
	out, err := s.Run(t.Context(), "alice", nil)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, model.StateSucceeded, out.Job.State)
	require.Equal(t, 0, *out.Job.ExitCode)
	require.Equal(t, "done\n", string(out.Stdout))

	s = supervisor.New(shell(t, `sleep 2 & exit 3`, time.Minute),
		supervisor.WithWaitDelay(100*time.Millisecond))
	out, err = s.Run(t.Context(), "alice", nil)
	require.ErrorIs(t, err, model.ErrProcess)
	require.Equal(t, 3, *out.Job.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	timeout := 200 * time.Millisecond
	s := supervisor.New(shell(t, `echo partial; exec sleep 5`, timeout))

	start := time.Now()
	out, err := s.Run(t.Context(), "alice", nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, model.ErrTimeout)
	require.Equal(t, model.StateTimedOut, out.Job.State)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+3*time.Second)
	require.NotNil(t, out.Stdout)
	require.NotNil(t, out.Stderr)
	require.Equal(t, "partial\n", string(out.Stdout))
	require.Equal(t, "partial", model.DetailOf(err))
}

func TestRunLaunchError(t *testing.T) {
	t.Parallel()
	s := supervisor.New(supervisor.Command{Path: "does-not-exist-worker", Timeout: time.Second})

	out, err := s.Run(t.Context(), "alice", nil)
	require.ErrorIs(t, err, model.ErrLaunch)
	var execErr *exec.Error
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, model.StateFailed, out.Job.State)
	require.True(t, out.Job.StartedAt.IsZero())
	require.Nil(t, out.Job.ExitCode)
}

func TestRunLaunchErrorNotExecutable(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("root may execute anything")
	}
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o600))

	_, err := supervisor.New(supervisor.Command{Path: path}).Run(t.Context(), "alice", nil)
	require.ErrorIs(t, err, model.ErrLaunch)
}

func TestRunEmptyProfile(t *testing.T) {
	t.Parallel()
	out, err := supervisor.New(supervisor.Command{Path: "unused"}).Run(context.Background(), "", nil)
	require.ErrorIs(t, err, model.ErrInvalidRequest)
	require.Equal(t, model.StateIdle, out.Job.State)
}

func TestRunSinkOrder(t *testing.T) {
	t.Parallel()
	s := supervisor.New(shell(t, `for i in 1 2 3 4 5; do echo "$i"; echo "e$i" 1>&2; sleep 0.01; done`, time.Minute))

	var mx sync.Mutex
	got := map[supervisor.Stream]*strings.Builder{
		supervisor.StreamStdout: {},
		supervisor.StreamStderr: {},
	}
	sink := func(stream supervisor.Stream, chunk []byte) {
		mx.Lock()
		defer mx.Unlock()
		got[stream].Write(chunk)
	}

	out, err := s.Run(t.Context(), "alice", sink)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n4\n5\n", got[supervisor.StreamStdout].String())
	require.Equal(t, "e1\ne2\ne3\ne4\ne5\n", got[supervisor.StreamStderr].String())
	require.Equal(t, got[supervisor.StreamStdout].String(), string(out.Stdout))
}

func TestDefaultTimeout(t *testing.T) {
	t.Parallel()
	require.Equal(t, 300*time.Second, supervisor.New(supervisor.Command{Path: "x"}).Timeout())
}
