package decision

import (
	"context"
	"sync"

	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// HumanSource bridges a connected client to the supervisor's decision loop.
//
// The transport calls Submit when the client answers; Decide parks until a
// submission arrives or the supervisor's deadline expires. One pending
// request at a time per seat, matching the phase machine: a seat is never
// asked two questions concurrently.
type HumanSource struct {
	mu      sync.Mutex
	pending *pendingRequest
}

type pendingRequest struct {
	req    Request
	answer chan Action
}

// NewHumanSource builds a source for one human-driven seat.
func NewHumanSource() *HumanSource {
	return &HumanSource{}
}

// Decide publishes the request and waits for Submit or cancellation.
func (h *HumanSource) Decide(ctx context.Context, req Request) (Action, error) {
	p := &pendingRequest{req: req, answer: make(chan Action, 1)}

	h.mu.Lock()
	h.pending = p
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.pending == p {
			h.pending = nil
		}
		h.mu.Unlock()
	}()

	select {
	case action := <-p.answer:
		return action, nil
	case <-ctx.Done():
		return Action{}, ctx.Err()
	}
}

// Pending returns the open request, if any, so a reconnecting client can be
// re-prompted.
func (h *HumanSource) Pending() (Request, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return Request{}, false
	}
	return h.pending.req, true
}

// Submit answers the open request. A submission for a resolved or never-asked
// decision is rejected; the caller surfaces that to the client.
func (h *HumanSource) Submit(kind Kind, action Action) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil || h.pending.req.Kind != kind {
		return apperrors.New(apperrors.CodeActionDecisionResolved,
			"no open decision of this kind for the seat")
	}
	select {
	case h.pending.answer <- action:
		h.pending = nil
		return nil
	default:
		return apperrors.New(apperrors.CodeActionDecisionResolved,
			"decision already answered")
	}
}
