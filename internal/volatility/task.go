package volatility

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/Recall/internal/log"
	"github.com/CZERTAINLY/Recall/internal/model"

	"github.com/google/uuid"
)

const TaskName = "VolatilityTask"

// Executor runs a command on behalf of a task and returns its exit code.
// newEvidence is registered on the result before the command starts. When
// closeOnExit is true, the executor closes the result on failures it
// detects itself (e.g. the binary can't be started); the caller closes it
// in all other cases.
type Executor interface {
	Execute(ctx context.Context, argv []string, result *model.Result, newEvidence []*model.Report, closeOnExit bool) (int, error)
}

// Task runs a single volatility module against a single evidence. Every
// task has own ID and writes its report to <outputDir>/<ID>.txt.
type Task struct {
	id            string
	module        string
	outputDir     string
	binary        string
	maxReportSize int64
	executor      Executor
}

func New(module, outputDir string, executor Executor) Task {
	if module == "" {
		module = model.DefaultModule
	}
	return Task{
		id:            uuid.NewString(),
		module:        module,
		outputDir:     outputDir,
		binary:        model.DefaultBinary,
		maxReportSize: MaxReportSize,
		executor:      executor,
	}
}

func (t Task) WithBinary(binary string) Task {
	if binary != "" {
		t.binary = binary
	}
	return t
}

func (t Task) WithMaxReportSize(size int64) Task {
	if size > 0 {
		t.maxReportSize = size
	}
	return t
}

func (t Task) ID() string     { return t.id }
func (t Task) Module() string { return t.module }

// OutputPath is the path of the report written by volatility
func (t Task) OutputPath() string {
	return filepath.Join(t.outputDir, t.outputName())
}

func (t Task) outputName() string {
	return t.id + ".txt"
}

// NewResult returns an empty result owned by the task
func (t Task) NewResult() *model.Result {
	return model.NewResult(t.id, TaskName)
}

// Run executes volatility against the evidence and records the outcome in
// result, which is always closed when Run returns.
func (t Task) Run(ctx context.Context, ev model.Evidence, result *model.Result) *model.Result {
	ctx = log.ContextAttrs(ctx,
		slog.String("task_id", t.id),
		slog.String("module", t.module),
		slog.String("evidence", ev.Name),
	)

	outputPath := t.OutputPath()
	report := &model.Report{
		SourcePath: outputPath,
		TaskID:     t.id,
		TaskName:   TaskName,
	}

	cmd := Command(t.binary, ev, t.module, outputPath)
	result.Log(ctx, "Running volatility as ["+strings.Join(cmd, " ")+"]")
	exitCode, err := t.executor.Execute(ctx, cmd, result, []*model.Report{report}, true)
	if err != nil {
		slog.ErrorContext(ctx, "volatility execution failed", "error", err)
	}
	if result.Closed() {
		return result
	}

	outcome := t.finalize(exitCode)
	slog.DebugContext(ctx, "volatility finalized", "outcome", outcome.Kind.String(), "size", outcome.Size)
	if err := outcome.Apply(ctx, result, report); err != nil {
		slog.ErrorContext(ctx, "closing volatility result", "error", err)
	}
	return result
}

func (t Task) finalize(exitCode int) Outcome {
	if exitCode != 0 {
		return Finalize(nil, "", t.module, exitCode, t.maxReportSize)
	}
	root, err := os.OpenRoot(t.outputDir)
	if err != nil {
		return Outcome{
			Kind:     OutputMissing,
			Module:   t.module,
			ExitCode: exitCode,
			Limit:    t.maxReportSize,
			Err:      err,
		}
	}
	defer func() {
		_ = root.Close()
	}()
	return Finalize(root.FS(), t.outputName(), t.module, exitCode, t.maxReportSize)
}
