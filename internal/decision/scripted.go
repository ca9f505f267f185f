package decision

import (
	"context"
	"sync"

	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// ScriptedSource replays a fixed sequence of actions. It backs tests and
// local smoke matches where seats follow a predetermined script.
type ScriptedSource struct {
	mu      sync.Mutex
	actions []Action
}

// NewScriptedSource builds a source that answers with the given actions in
// order.
func NewScriptedSource(actions ...Action) *ScriptedSource {
	return &ScriptedSource{actions: append([]Action(nil), actions...)}
}

// Push appends further actions to the script.
func (s *ScriptedSource) Push(actions ...Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actions...)
}

// Decide pops the next scripted action. An exhausted script is an error so
// tests fail loudly instead of hanging.
func (s *ScriptedSource) Decide(ctx context.Context, _ Request) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) == 0 {
		return Action{}, apperrors.New(apperrors.CodeDecisionSourceExhausted,
			"scripted source has no actions left")
	}
	action := s.actions[0]
	s.actions = s.actions[1:]
	return action, nil
}
