package volatility

import (
	"github.com/CZERTAINLY/Recall/internal/model"
)

// Command returns the argument vector running volatility module against
// the evidence and writing a text report into outputPath. Neither the
// binary nor the arguments are validated, a bad invocation is reported
// by the tool's exit code.
func Command(binary string, ev model.Evidence, module, outputPath string) []string {
	if binary == "" {
		binary = model.DefaultBinary
	}
	return []string{
		binary,
		"-f", ev.LocalPath,
		"--profile=" + ev.Profile,
		module,
		"--output=text",
		"--output-file=" + outputPath,
	}
}
