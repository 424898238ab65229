package kpd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModuleRunner runs a module within the supervisor.
type ModuleRunner struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor manages module lifecycles. The first module to fail stops
// the others.
type Supervisor struct {
	Logger *zap.Logger
}

// Run starts all module runners and waits for them to stop.
func (s Supervisor) Run(ctx context.Context, modules []ModuleRunner) error {
	if len(modules) == 0 {
		return fmt.Errorf("no modules enabled")
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, module := range modules {
		m := module
		group.Go(func() error {
			logger := log.With(zap.String("module", m.Name))
			logger.Info("starting module")
			if err := m.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("module exited", zap.Error(err))
				return fmt.Errorf("%s: %w", m.Name, err)
			}
			logger.Info("module stopped")
			return nil
		})
	}

	go func() {
		<-groupCtx.Done()
		if ctx.Err() != nil {
			log.Info("shutdown requested")
		}
	}()

	return group.Wait()
}
