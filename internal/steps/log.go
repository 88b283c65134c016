package steps

import (
	"context"
	"fmt"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/logger"
)

// TypeLog is the step type name of the log step.
const TypeLog = "log"

// Log writes a message to the application log.
//
// Config: message (placeholders allowed), level (debug, info or warn).
type Log struct {
	printf map[string]func(string, ...any)
}

// NewLog creates a log step.
func NewLog() *Log {
	return &Log{printf: map[string]func(string, ...any){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
	}}
}

// Execute logs the configured message.
func (l *Log) Execute(_ context.Context, in *domain.StepInput) (domain.StepOutput, error) {
	msg, err := stringOpt(in.Spec.Config, "message", "workflow {workflow} step {step} ran for {path}")
	if err != nil {
		return nil, err
	}
	level, err := stringOpt(in.Spec.Config, "level", "info")
	if err != nil {
		return nil, err
	}
	printf, ok := l.printf[level]
	if !ok {
		return nil, configError("level", fmt.Sprintf("must be one of debug, info, warn (got %q)", level))
	}

	msg = expand(msg, in)
	printf("[%s] %s", in.WorkflowID, msg)
	return domain.StepOutput{"message": msg}, nil
}
