package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/Recall/internal/log"
	"github.com/CZERTAINLY/Recall/internal/model"
	"github.com/CZERTAINLY/Recall/internal/service"

	"github.com/spf13/cobra"
)

var (
	flagEvidence  string   // value of --evidence flag
	flagProfile   string   // value of --profile flag
	flagModules   []string // values of --module flags
	flagOutputDir string   // value of --output-dir flag
)

var errTasksFailed = errors.New("some volatility tasks have failed")

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("recall",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	evidencePath, err := filepath.Abs(flagEvidence)
	if err != nil {
		return fmt.Errorf("resolving evidence path: %w", err)
	}
	if _, err := os.Stat(evidencePath); err != nil {
		return fmt.Errorf("evidence: %w", err)
	}

	cfg := config
	if len(flagModules) > 0 {
		cfg.Volatility.Modules = flagModules
	}
	if flagOutputDir != "" {
		cfg.Volatility.OutputDir = &flagOutputDir
	}

	svc, err := service.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	ev := model.NewEvidence(evidencePath, flagProfile)
	ctx = log.ContextAttrs(ctx, slog.String("evidence_id", ev.ID))
	results, err := svc.Run(ctx, ev)
	if err != nil {
		return err
	}

	var failed int
	for _, result := range results {
		slog.InfoContext(ctx, "volatility task finished",
			"task_id", result.TaskID,
			"successful", result.Successful(),
			"status", result.Status(),
			"duration", result.Duration().String(),
		)
		if !result.Successful() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errTasksFailed, failed, len(results))
	}
	return nil
}
