package volatility

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/Recall/internal/model"
)

// Kind is a terminal state of a volatility run
type Kind int

const (
	ProcessFailed Kind = iota // non-zero exit code
	OutputMissing             // zero exit code, but no output file
	Succeeded
	Truncated  // succeeded, report bigger than the limit
	Unreadable // report is not a valid UTF-8 text
)

func (k Kind) String() string {
	switch k {
	case ProcessFailed:
		return "process_failed"
	case OutputMissing:
		return "output_missing"
	case Succeeded:
		return "succeeded"
	case Truncated:
		return "truncated"
	case Unreadable:
		return "unreadable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the verdict of Finalize. It carries everything needed to
// update the task result, so Finalize itself has no side effects.
type Outcome struct {
	Kind     Kind
	Module   string
	ExitCode int
	Size     int64 // size of the output file, when known
	Limit    int64
	Text     string
	SHA256   string
	Err      error // stat, read or decode error
}

// Success is true for Succeeded and Truncated outcomes
func (o Outcome) Success() bool {
	return o.Kind == Succeeded || o.Kind == Truncated
}

func (o Outcome) Status() string {
	switch o.Kind {
	case ProcessFailed:
		return fmt.Sprintf("Volatility module %s failed to run", o.Module)
	case OutputMissing:
		return "Volatility ran successfully, but no output file was created"
	case Succeeded:
		return fmt.Sprintf("Volatility module %s successfully ran", o.Module)
	case Truncated:
		return fmt.Sprintf("Volatility module %s successfully ran (report truncated)", o.Module)
	case Unreadable:
		return fmt.Sprintf("Volatility report could not be read: %v", o.Err)
	default:
		return "Volatility task ended in unknown state " + o.Kind.String()
	}
}

// Apply records the outcome in the result and the report and closes the
// result. It is the only place a finalized task touches them.
func (o Outcome) Apply(ctx context.Context, result *model.Result, report *model.Report) error {
	switch o.Kind {
	case ProcessFailed:
		slog.DebugContext(ctx, "volatility failed", "exit_code", o.ExitCode)
	case OutputMissing:
		result.Log(ctx, fmt.Sprintf("Unable to determine size of output file %s: %v", report.SourcePath, o.Err))
	default:
		report.Size = o.Size
		if o.Size > o.Limit {
			result.Log(ctx, fmt.Sprintf(
				"Volatility report output size (%d) is greater than max report size (%d). Truncating report to max size",
				o.Size, o.Limit))
		}
	}

	if o.Success() {
		report.TextData = o.Text
		report.SHA256 = o.SHA256
		report.Truncated = o.Kind == Truncated
		if err := result.SetReportData(o.Text); err != nil {
			return err
		}
	}

	return result.Close(ctx, o.Success(), o.Status())
}
