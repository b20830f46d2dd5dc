package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/CZERTAINLY/Recall/internal/bom"
	"github.com/CZERTAINLY/Recall/internal/cdxprops"
	"github.com/CZERTAINLY/Recall/internal/model"
	"github.com/CZERTAINLY/Recall/internal/volatility"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"golang.org/x/sync/errgroup"
)

// Service runs every configured volatility module against an evidence and
// publishes the results as a CycloneDX BOM.
type Service struct {
	binary        string
	modules       []string
	outputDir     string
	maxReportSize int64
	timeout       time.Duration
	parallelism   int
	uploaders     []model.Uploader
	newExecutor   func() volatility.Executor
	runTask       func(context.Context, volatility.Task, model.Evidence) *model.Result
}

func New(ctx context.Context, cfg model.Config) (*Service, error) {
	if cfg.Version != 0 {
		return nil, fmt.Errorf("config version %d is not supported, expected 0", cfg.Version)
	}
	volCfg := cfg.Volatility

	timeout, err := volCfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	outputDir := model.Get(volCfg.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join(os.TempDir(), "recall")
	}

	uploaders, err := uploaders(ctx, cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}

	s := &Service{
		binary:        model.Get(volCfg.Binary),
		modules:       volCfg.ModuleNames(),
		outputDir:     outputDir,
		maxReportSize: model.Get(volCfg.MaxReportSize),
		timeout:       timeout,
		parallelism:   max(model.Get(volCfg.Parallelism), 1),
		uploaders:     uploaders,
		runTask:       runTask,
	}
	s.newExecutor = func() volatility.Executor {
		return NewRunner().WithTimeout(s.timeout)
	}
	return s, nil
}

// WithUploaders replaces the uploaders of an initialized Service.
// This method exists for a unit testing only.
func (s *Service) WithUploaders(ctx context.Context, uploaders ...model.Uploader) *Service {
	closeUploaders(ctx, s.uploaders)
	s.uploaders = uploaders
	return s
}

// WithExecutor replaces the Runner used by tasks.
// This method exists for a unit testing only.
func (s *Service) WithExecutor(newExecutor func() volatility.Executor) *Service {
	s.newExecutor = newExecutor
	return s
}

func (s *Service) OutputDir() string {
	return s.outputDir
}

// Run runs a task for every module, builds the BOM and uploads it. Results
// are returned in the order of modules. Only infrastructure problems are
// reported as an error, a failed task is recorded in its result. A task
// returning an open result is a bug: nothing is uploaded then and the error
// wraps model.ErrResultNotClosed.
func (s *Service) Run(ctx context.Context, ev model.Evidence) ([]*model.Result, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	results := make([]*model.Result, len(s.modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for idx, module := range s.modules {
		task := volatility.New(module, s.outputDir, s.newExecutor()).
			WithBinary(s.binary).
			WithMaxReportSize(s.maxReportSize)
		g.Go(func() error {
			slog.DebugContext(gctx, "starting a task", "task_id", task.ID(), "module", module)
			result := s.runTask(gctx, task, ev)
			results[idx] = result
			if !result.Closed() {
				return fmt.Errorf("task %s: %w", task.ID(), model.ErrResultNotClosed)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var buf bytes.Buffer
	if err := s.BOM(ev, results).AsJSON(&buf); err != nil {
		return results, fmt.Errorf("formatting BOM as JSON: %w", err)
	}
	if err := upload(ctx, s.uploaders, buf.Bytes()); err != nil {
		return results, fmt.Errorf("uploading BOM: %w", err)
	}
	return results, nil
}

// BOM describes the evidence and the reports produced from it
func (s *Service) BOM(ev model.Evidence, results []*model.Result) *bom.Builder {
	b := bom.NewBuilder().
		AppendComponents(cdxprops.EvidenceToComponent(ev))

	var failed int
	for idx, result := range results {
		if result == nil {
			continue
		}
		if !result.Successful() {
			failed++
		}
		compos := cdxprops.ResultToComponents(s.modules[idx], result)
		b.AppendComponents(compos...)
		b.AppendDependencies(cdxprops.ReportDependencies(ev, compos)...)
	}
	b.AppendProperties(
		cdx.Property{Name: "recall:tasks", Value: strconv.Itoa(len(results))},
		cdx.Property{Name: "recall:tasks:failed", Value: strconv.Itoa(failed)},
	)
	return b
}

func runTask(ctx context.Context, task volatility.Task, ev model.Evidence) *model.Result {
	return task.Run(ctx, ev, task.NewResult())
}

func (s *Service) Close(ctx context.Context) {
	closeUploaders(ctx, s.uploaders)
	s.uploaders = nil
}
