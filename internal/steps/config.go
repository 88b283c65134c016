package steps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// Step configs arrive from TOML (int64) or JSON (float64), so the
// accessors accept any numeric representation.

func stringOpt(cfg map[string]any, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", configError(key, "must be a string")
	}
	return s, nil
}

func boolOpt(cfg map[string]any, key string, def bool) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, configError(key, "must be a boolean")
		}
		return parsed, nil
	}
	return false, configError(key, "must be a boolean")
}

func intOpt(cfg map[string]any, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, configError(key, "must be an integer")
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, configError(key, "must be an integer")
		}
		return parsed, nil
	}
	return 0, configError(key, "must be an integer")
}

// durationOpt accepts a Go duration string or a number of seconds.
func durationOpt(cfg map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return 0, configError(key, "must be a duration like \"1s\"")
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	}
	return 0, configError(key, "must be a duration")
}

func stringMapOpt(cfg map[string]any, key string) (map[string]string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, configError(key, "must be a table of strings")
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, configError(key+"."+k, "must be a string")
		}
		out[k] = s
	}
	return out, nil
}

// configError is permanent: retrying a misconfigured step cannot help.
func configError(key, msg string) error {
	return domain.Permanent(fmt.Errorf("%w: config %q %s", domain.ErrInvalidInput, key, msg))
}

// expand substitutes {path}, {kind}, {workflow}, {execution} and {step}
// placeholders in s.
func expand(s string, in *domain.StepInput) string {
	if !strings.Contains(s, "{") {
		return s
	}
	var p, kind string
	if in.Trigger != nil {
		p = in.Trigger.Path
		kind = string(in.Trigger.ChangeKind)
	}
	return strings.NewReplacer(
		"{path}", p,
		"{kind}", kind,
		"{workflow}", in.WorkflowID,
		"{execution}", in.ExecutionID,
		"{step}", in.Spec.Name,
	).Replace(s)
}
