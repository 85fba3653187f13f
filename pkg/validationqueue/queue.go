// Package validationqueue implements the FIFO work-list the orchestrator
// drives: one ValidationQueueItem per token, enqueued by the caller or by a
// SIOP fan-out, dequeued strictly in insertion order until every item
// carries a final result.
package validationqueue

import (
	"github.com/google/uuid"

	"siopverifier/pkg/claimtoken"
)

// ValidationResponse is the per-item outcome a validator produces. Status
// mirrors the HTTP-like codes from apierrors.Kind.Status (200 ok, 400
// malformed, 403 rejected, 500 misconfigured).
type ValidationResponse struct {
	Result           bool                               `json:"result"`
	Status           int                                `json:"status"`
	DetailedError    string                              `json:"detailedError,omitempty"`
	PayloadObject    map[string]any                      `json:"payloadObject,omitempty"`
	Did              string                              `json:"did,omitempty"`
	TokensToValidate map[string]*claimtoken.ClaimToken   `json:"tokensToValidate,omitempty"`
}

// Item is one entry in the queue: the raw token to validate plus, once
// classified and validated, its ClaimToken and result.
type Item struct {
	ID              string
	TokenToValidate string
	ClaimToken      *claimtoken.ClaimToken
	ValidatedToken  *claimtoken.ClaimToken
	Response        *ValidationResponse
	IsValidated     bool
}

// Queue is an append-only, insertion-ordered FIFO of Items. It is built and
// drained by exactly one Validate call and is not safe for concurrent use
// across goroutines — the engine is single-threaded by design (spec §5).
type Queue struct {
	items []*Item
	index map[string]*Item
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{index: make(map[string]*Item)}
}

// EnqueueToken appends a new, unvalidated item holding a raw token still to
// be parsed and classified. An empty id is assigned a fresh uuid so the
// queue always has a stable handle to report in ValidationResult.
func (q *Queue) EnqueueToken(id, raw string) *Item {
	if id == "" {
		id = uuid.New().String()
	}
	item := &Item{ID: id, TokenToValidate: raw}
	q.items = append(q.items, item)
	q.index[id] = item
	return item
}

// EnqueueItem appends an item that has already been classified, skipping
// re-parsing. Used by fan-out, which holds a *claimtoken.ClaimToken it just
// produced from an extraction strategy.
func (q *Queue) EnqueueItem(id string, token *claimtoken.ClaimToken) *Item {
	if id == "" {
		id = uuid.New().String()
	}
	item := &Item{ID: id, TokenToValidate: token.RawToken, ClaimToken: token}
	q.items = append(q.items, item)
	q.index[id] = item
	return item
}

// GetNext returns the first item with IsValidated false, in insertion
// order, or nil once every item has a final result.
func (q *Queue) GetNext() *Item {
	for _, item := range q.items {
		if !item.IsValidated {
			return item
		}
	}
	return nil
}

// SetResult marks item as validated and records both its response and the
// resolved, type-tagged token. Once set, a result is final: SetResult
// overwrites in place but the queue never re-dispatches a validated item.
func (q *Queue) SetResult(item *Item, resp *ValidationResponse, resolved *claimtoken.ClaimToken) {
	item.Response = resp
	item.ValidatedToken = resolved
	item.IsValidated = true
}

// Items returns the queue's items in insertion order, including any
// appended by fan-out after iteration began.
func (q *Queue) Items() []*Item {
	return q.items
}

// Len returns the current item count.
func (q *Queue) Len() int {
	return len(q.items)
}

// Aggregate succeeds iff every item's response succeeded; otherwise it
// returns the first failing item's response verbatim, matching the "no
// partial success" property: a single failure anywhere fails the whole run.
func (q *Queue) Aggregate() *ValidationResponse {
	for _, item := range q.items {
		if item.Response == nil {
			continue
		}
		if !item.Response.Result {
			return item.Response
		}
	}
	return &ValidationResponse{Result: true, Status: 200}
}
