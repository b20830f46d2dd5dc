package service_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CZERTAINLY/Recall/internal/model"
	"github.com/CZERTAINLY/Recall/internal/service"
	"github.com/stretchr/testify/require"
)

func TestRunner(t *testing.T) {
	t.Parallel()
	yes, err := exec.LookPath("yes")
	if err != nil {
		t.Skipf("skipped, binary yes not available: %v", err)
	}

	runner := service.NewRunner()
	t.Cleanup(runner.Close)
	t.Run("not yet started", func(t *testing.T) {
		res := runner.LastResult()
		require.ErrorIs(t, res.Err, service.ErrNotStarted)
	})

	cmd := service.Command{
		Path:    yes,
		Args:    []string{"golang"},
		Env:     []string{"LC_ALL=C"},
		Timeout: 100 * time.Millisecond,
	}
	ctx := t.Context()

	t.Run("start", func(t *testing.T) {
		err = runner.Start(ctx, cmd, nil)
		require.NoError(t, err)
	})
	t.Run("in progress", func(t *testing.T) {
		err = runner.Start(ctx, cmd, nil)
		require.ErrorIs(t, err, service.ErrInProgress)
	})
	t.Run("wait", func(t *testing.T) {
		res := <-runner.WaitChan()
		require.Equal(t, yes, res.Path)
		require.Equal(t, []string{"golang"}, res.Args)
		require.NotZero(t, res.Started)
		require.NotZero(t, res.Stopped)
		require.GreaterOrEqual(t, res.Stopped.Sub(res.Started), 100*time.Millisecond)
		var exitErr *exec.ExitError
		require.ErrorAs(t, res.Err, &exitErr)
		require.Equal(t, -1, res.ExitCode())

		require.Greater(t, res.Stdout.Len(), 1024)
		require.True(t, strings.HasPrefix(
			string(res.Stdout.Bytes()[:256]),
			"golang\ngolang\n",
		))
	})
	t.Run("last result", func(t *testing.T) {
		res := runner.LastResult()
		require.Equal(t, yes, res.Path)
		require.NotNil(t, res.State)
	})
	t.Run("exec error", func(t *testing.T) {
		noCmd := service.Command{
			Path: "does not exist",
		}
		err := runner.Start(ctx, noCmd, nil)
		var execErr *exec.Error
		require.ErrorAs(t, err, &execErr)
		require.Equal(t, noCmd.Path, execErr.Name)
		require.EqualError(t, execErr.Err, "executable file not found in $PATH")
	})
}

func TestStderr(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	cmd := service.Command{
		Path: sh,
		Args: []string{"-c", "echo stdout; printf 'stderr\\nstderr\\n' 1>&2"},
	}

	var mx sync.Mutex
	var stderr []string
	handle := func(_ context.Context, line string) {
		mx.Lock()
		defer mx.Unlock()
		stderr = append(stderr, line)
	}

	runner := service.NewRunner()
	t.Cleanup(runner.Close)
	err = runner.Start(t.Context(), cmd, handle)
	require.NoError(t, err)
	res := <-runner.WaitChan()
	require.Equal(t, "stdout\n", res.Stdout.String())
	require.Equal(t, 0, res.ExitCode())
	mx.Lock()
	defer mx.Unlock()
	require.Equal(t, []string{"stderr", "stderr"}, stderr)
}

// fakeVol writes a shell script standing in for vol.py: it writes
// report into --output-file and exits with code
func fakeVol(t *testing.T, report string, code int) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	script := `#!/bin/sh
for arg in "$@"; do
  case "$arg" in
    --output-file=*) out="${arg#--output-file=}" ;;
  esac
done
echo "Volatility Foundation Volatility Framework 2.6" 1>&2
`
	if report != "" {
		script += "printf '%s' '" + report + "' > \"$out\"\n"
	}
	script += "exit " + strconv.Itoa(code) + "\n"

	path := filepath.Join(t.TempDir(), "vol.py")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestExecute(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		code     int
		report   string
	}{
		{scenario: "success", code: 0, report: "Offset(V) Name PID"},
		{scenario: "failure", code: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			vol := fakeVol(t, tc.report, tc.code)
			out := filepath.Join(t.TempDir(), "42.txt")

			result := model.NewResult("42", "test")
			report := &model.Report{SourcePath: out}
			runner := service.NewRunner().WithTimeout(10 * time.Second)
			code, err := runner.Execute(t.Context(), []string{vol, "-f", "mem.raw", "--output-file=" + out}, result, []*model.Report{report}, true)
			require.NoError(t, err)
			require.Equal(t, tc.code, code)
			require.False(t, result.Closed(), "a process exit is never closed by the runner")
			require.Equal(t, []*model.Report{report}, result.Evidence())

			trail := result.Trail()
			require.Contains(t, trail, "Volatility Foundation Volatility Framework 2.6")
			if tc.code == 0 {
				require.Contains(t, trail[len(trail)-1], "succeeded")
				b, err := os.ReadFile(out)
				require.NoError(t, err)
				require.Equal(t, tc.report, string(b))
			} else {
				require.Contains(t, trail[len(trail)-1], "failed with status 3")
			}
		})
	}
}

func TestExecute_SpawnFailure(t *testing.T) {
	t.Parallel()
	result := model.NewResult("42", "test")
	report := &model.Report{SourcePath: "/nonexistent/42.txt"}

	runner := service.NewRunner()
	code, err := runner.Execute(t.Context(), []string{"does-not-exist-vol.py"}, result, []*model.Report{report}, true)
	require.Error(t, err)
	require.Equal(t, -1, code)
	require.True(t, result.Closed())
	require.False(t, result.Successful())
	require.Contains(t, result.Status(), "failed")
	require.Equal(t, []*model.Report{report}, result.Evidence())

	t.Run("without close", func(t *testing.T) {
		result := model.NewResult("43", "test")
		_, err := runner.Execute(t.Context(), nil, result, nil, false)
		require.ErrorIs(t, err, service.ErrEmptyCommand)
		require.False(t, result.Closed())
	})
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("skipped, binary sleep not available: %v", err)
	}
	result := model.NewResult("42", "test")
	runner := service.NewRunner().WithTimeout(50 * time.Millisecond)
	code, err := runner.Execute(t.Context(), []string{sleep, "10"}, result, nil, true)
	require.NoError(t, err)
	require.NotZero(t, code)
	require.False(t, result.Closed())
}

func TestExecute_Canceled(t *testing.T) {
	t.Parallel()
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("skipped, binary sleep not available: %v", err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	t.Cleanup(cancel)

	result := model.NewResult("42", "test")
	runner := service.NewRunner()
	start := time.Now()
	code, err := runner.Execute(ctx, []string{sleep, "10"}, result, nil, true)
	require.NoError(t, err)
	require.Equal(t, -1, code)
	require.Less(t, time.Since(start), 5*time.Second)
	require.NotErrorIs(t, runner.LastResult().Err, service.ErrInProgress)
	require.Contains(t, strings.Join(result.Trail(), "\n"), "failed with status -1")
}

func TestExecute_InheritedStderr(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skipf("skipped, binary sleep not available: %v", err)
	}

	// the background sleep keeps stdout and stderr open after sh exits
	script := "echo started 1>&2; sleep 30 & exit 0"
	result := model.NewResult("42", "test")
	runner := service.NewRunner().WithTimeout(time.Second)
	start := time.Now()
	code, err := runner.Execute(t.Context(), []string{"sh", "-c", script}, result, nil, true)
	require.NoError(t, err)
	require.Zero(t, code)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Contains(t, result.Trail(), "started")
}
