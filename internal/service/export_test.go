package service

import (
	"context"

	"github.com/CZERTAINLY/Recall/internal/model"
	"github.com/CZERTAINLY/Recall/internal/volatility"
)

// WithTaskRunner replaces the way a task is run
func (s *Service) WithTaskRunner(run func(context.Context, volatility.Task, model.Evidence) *model.Result) *Service {
	s.runTask = run
	return s
}
