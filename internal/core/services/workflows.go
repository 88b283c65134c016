package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// LoadWorkflows registers every definition the loader yields.
// Invalid definitions are skipped and reported together; the valid ones
// stay registered.
func LoadWorkflows(ctx context.Context, loader driven.WorkflowLoader, registry driving.WorkflowRegistry) (int, error) {
	defs, err := loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load workflows: %w", err)
	}

	var errs []error
	loaded := 0
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			logger.Warn("Skipping workflow %q: %v", def.ID, err)
			errs = append(errs, fmt.Errorf("workflow %q: %w", def.ID, err))
			continue
		}
		loaded++
	}
	logger.Info("Registered %d of %d workflows", loaded, len(defs))
	return loaded, errors.Join(errs...)
}
