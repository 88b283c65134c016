package driving

import "github.com/weave-nn/weaver/internal/core/domain"

// TriggerMatcher turns vault events into execution requests and enforces
// each workflow's concurrency policy.
type TriggerMatcher interface {
	// Match returns one request per enabled workflow matching the event, in
	// registration order. A request blocked by a busy concurrency slot has
	// Queued set and waits, in arrival order, until the slot is handed to it.
	Match(event domain.VaultEvent) []domain.ExecutionRequest

	// MatchManual builds a request for a workflow regardless of trigger
	// patterns. The request has Queued set when its slot is busy.
	MatchManual(workflowID string, event *domain.VaultEvent, input map[string]any) (*domain.ExecutionRequest, error)

	// Release frees the concurrency slot held by a request and returns the
	// queued request that now owns it, if any. Releasing a queued request
	// withdraws it.
	Release(req *domain.ExecutionRequest) *domain.ExecutionRequest

	// Claim takes the concurrency slot for a request if it is free, or
	// reports true if the request already holds it. Returns false while
	// another request holds it.
	Claim(req *domain.ExecutionRequest) bool

	// Track rebuilds slots from records that were unfinished before a
	// restart and returns the records queued behind a busy slot.
	Track(records []domain.ExecutionRecord) []domain.ExecutionRecord
}
