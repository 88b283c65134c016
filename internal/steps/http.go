package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// TypeHTTP is the step type name of the http step.
const TypeHTTP = "http"

// maxResponseBody caps how much of a response is kept in the step output.
const maxResponseBody = 64 << 10

// HTTP sends the execution context as JSON to a URL.
//
// Config: url (required, placeholders allowed), method (default POST),
// headers (table of strings). Transport errors, 429 and 5xx responses are
// retryable; other 4xx responses are permanent.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an http step. A nil client uses http.DefaultClient.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client}
}

// requestBody is the JSON document posted to the target.
type requestBody struct {
	ExecutionID string              `json:"execution_id"`
	WorkflowID  string              `json:"workflow_id"`
	Step        string              `json:"step"`
	StepIndex   int                 `json:"step_index"`
	Attempt     int                 `json:"attempt"`
	Trigger     *domain.VaultEvent  `json:"trigger,omitempty"`
	Input       map[string]any      `json:"input,omitempty"`
	Prior       []domain.StepResult `json:"prior"`
}

// Execute performs the request.
func (h *HTTP) Execute(ctx context.Context, in *domain.StepInput) (domain.StepOutput, error) {
	req, err := h.buildRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Retryable(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return domain.StepOutput{
			"status": resp.StatusCode,
			"body":   decodeBody(resp.Header.Get("Content-Type"), raw),
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, domain.Retryable(statusError(resp.StatusCode, raw))
	default:
		return nil, domain.Permanent(statusError(resp.StatusCode, raw))
	}
}

func (h *HTTP) buildRequest(ctx context.Context, in *domain.StepInput) (*http.Request, error) {
	target, err := stringOpt(in.Spec.Config, "url", "")
	if err != nil {
		return nil, err
	}
	target = expand(target, in)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, configError("url", "must be an absolute http or https URL")
	}

	method, err := stringOpt(in.Spec.Config, "method", http.MethodPost)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)

	headers, err := stringMapOpt(in.Spec.Config, "headers")
	if err != nil {
		return nil, err
	}

	prior := in.Prior
	if prior == nil {
		prior = []domain.StepResult{}
	}
	payload, err := json.Marshal(requestBody{
		ExecutionID: in.ExecutionID,
		WorkflowID:  in.WorkflowID,
		Step:        in.Spec.Name,
		StepIndex:   in.StepIndex,
		Attempt:     in.Attempt,
		Trigger:     in.Trigger,
		Input:       in.Input,
		Prior:       prior,
	})
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("encode request: %w", err))
	}

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, configError("method", err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "weaver")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("%s/%d", in.ExecutionID, in.StepIndex))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// decodeBody returns parsed JSON for JSON responses and text otherwise.
func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(contentType, "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

var errHTTPStatus = errors.New("unexpected http status")

func statusError(code int, raw []byte) error {
	snippet := strings.TrimSpace(string(raw))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return fmt.Errorf("%w: %d %s", errHTTPStatus, code, http.StatusText(code))
	}
	return fmt.Errorf("%w: %d %s: %s", errHTTPStatus, code, http.StatusText(code), snippet)
}
