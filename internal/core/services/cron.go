package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driving"
	"github.com/weave-nn/weaver/internal/logger"
)

// CronTriggers fires manual triggers for workflows that declare a schedule.
// Overlapping runs of one schedule are skipped.
type CronTriggers struct {
	registry driving.WorkflowRegistry
	control  driving.ControlSurface

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	entries map[string]cron.EntryID
}

// NewCronTriggers creates a schedule runner.
func NewCronTriggers(registry driving.WorkflowRegistry, control driving.ControlSurface) *CronTriggers {
	return &CronTriggers{
		registry: registry,
		control:  control,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start schedules every registered workflow with a schedule and runs the
// cron loop until ctx is cancelled.
func (c *CronTriggers) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	if err := c.Sync(ctx); err != nil {
		return err
	}

	c.cron.Start()
	<-ctx.Done()
	stopCtx := c.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// Sync adds cron entries for newly scheduled workflows and removes entries
// for workflows no longer registered.
func (c *CronTriggers) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[string]struct{})
	for _, info := range c.registry.List(domain.WorkflowFilter{}) {
		def := info.Definition
		if def.Schedule == "" {
			continue
		}
		current[def.ID] = struct{}{}
		if _, ok := c.entries[def.ID]; ok {
			continue
		}
		id := def.ID
		entryID, err := c.cron.AddFunc(def.Schedule, func() { c.fire(ctx, id) })
		if err != nil {
			return fmt.Errorf("schedule %s: %w", id, err)
		}
		c.entries[id] = entryID
		logger.Debug("Scheduled %s with %q", id, def.Schedule)
	}

	for id, entryID := range c.entries {
		if _, ok := current[id]; !ok {
			c.cron.Remove(entryID)
			delete(c.entries, id)
		}
	}
	return nil
}

// Scheduled returns the IDs of workflows with cron entries.
func (c *CronTriggers) Scheduled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *CronTriggers) fire(ctx context.Context, workflowID string) {
	info, err := c.registry.Get(workflowID)
	if err != nil || !info.Enabled {
		return
	}
	input := map[string]any{
		"trigger_type": "schedule",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	res, err := c.control.TriggerWorkflow(ctx, workflowID, input)
	if err != nil {
		logger.Warn("Scheduled trigger of %s failed: %v", workflowID, err)
		return
	}
	if res.Execution != nil {
		logger.Info("Scheduled trigger of %s started execution %s", workflowID, res.Execution.ExecutionID)
	}
}
