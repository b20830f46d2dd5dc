package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Result accumulates the outcome of a single task execution. It is
// mutated while the task runs and closed exactly once at the end, after
// which it must be treated as read only.
type Result struct {
	TaskID   string
	TaskName string

	mx         sync.Mutex
	successful bool
	status     string
	reportData string
	evidence   []*Report
	trail      []string
	started    time.Time
	closed     time.Time
}

func NewResult(taskID, taskName string) *Result {
	return &Result{
		TaskID:   taskID,
		TaskName: taskName,
		started:  time.Now().UTC(),
	}
}

// Log appends a message to the result log trail and emits it
// through slog as well.
func (r *Result) Log(ctx context.Context, msg string, args ...any) {
	slog.InfoContext(ctx, msg, args...)
	r.mx.Lock()
	defer r.mx.Unlock()
	r.trail = append(r.trail, msg)
}

// AddEvidence registers evidence produced by the task. It is called
// before the task runs, so the artifacts are known even if it fails.
func (r *Result) AddEvidence(reports ...*Report) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.evidence = append(r.evidence, reports...)
}

// SetReportData stores the text of the report.
func (r *Result) SetReportData(text string) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if !r.closed.IsZero() {
		return ErrResultClosed
	}
	r.reportData = text
	return nil
}

// Close finalizes the result. Only the first call has an effect, every
// following call returns ErrResultClosed.
func (r *Result) Close(ctx context.Context, success bool, status string) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if !r.closed.IsZero() {
		slog.WarnContext(ctx, "result already closed", "task_id", r.TaskID, "status", status)
		return fmt.Errorf("closing %s: %w", r.TaskID, ErrResultClosed)
	}
	r.successful = success
	r.status = status
	r.closed = time.Now().UTC()
	r.trail = append(r.trail, "Task closed: "+status)
	slog.DebugContext(ctx, "result closed", "task_id", r.TaskID, "success", success, "status", status)
	return nil
}

func (r *Result) Closed() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return !r.closed.IsZero()
}

func (r *Result) Successful() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.successful
}

func (r *Result) Status() string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.status
}

func (r *Result) ReportData() string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.reportData
}

// Evidence returns the registered evidence. The Reports are shared,
// not copied.
func (r *Result) Evidence() []*Report {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]*Report(nil), r.evidence...)
}

func (r *Result) Trail() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]string(nil), r.trail...)
}

// Duration returns the time between creation and close, zero for
// a result still open.
func (r *Result) Duration() time.Duration {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.closed.IsZero() {
		return 0
	}
	return r.closed.Sub(r.started)
}
