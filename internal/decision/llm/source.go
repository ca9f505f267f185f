// Package llm adapts a language-model provider into a seat decision source.
//
// The source builds a prompt from the seat's filtered view, invokes the
// provider, and parses a strict JSON action out of the reply. Malformed
// replies and transient invocation failures are retried a bounded number of
// times; an exhausted budget surfaces as an error so the supervisor's default
// policy takes over.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/louisbranch/avalon.arena/internal/decision"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// DefaultParseRetries is how many times a malformed reply or failed
// invocation is re-asked before the source gives up.
const DefaultParseRetries = 2

// Source is a decision.Source backed by a model provider.
type Source struct {
	invoker Invoker
	retries int
}

// NewSource builds a model-backed source. retries < 0 selects the default.
func NewSource(invoker Invoker, retries int) *Source {
	if retries < 0 {
		retries = DefaultParseRetries
	}
	return &Source{invoker: invoker, retries: retries}
}

// Decide prompts the provider and parses its action.
func (s *Source) Decide(ctx context.Context, req decision.Request) (decision.Action, error) {
	prompt := BuildPrompt(req)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		output, err := s.invoker.Invoke(ctx, prompt)
		if err != nil {
			// Invocation failures are as retryable as malformed replies,
			// except when the caller's deadline is gone.
			if ctx.Err() != nil {
				return decision.Action{}, apperrors.Wrap(apperrors.CodeDecisionSourceExhausted,
					"provider invocation failed", err)
			}
			lastErr = err
			continue
		}
		action, err := ParseAction(req.Kind, output)
		if err == nil {
			return action, nil
		}
		lastErr = err
	}
	return decision.Action{}, apperrors.Wrap(apperrors.CodeDecisionSourceExhausted,
		"provider gave no usable action", lastErr)
}

// ParseAction extracts the action JSON from model output. The object may be
// surrounded by prose or a code fence; everything outside the first balanced
// JSON object is ignored. Fields are validated against the request kind.
func ParseAction(kind decision.Kind, output string) (decision.Action, error) {
	raw, err := extractJSON(output)
	if err != nil {
		return decision.Action{}, err
	}

	var action decision.Action
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&action); err != nil {
		return decision.Action{}, apperrors.Wrap(apperrors.CodeDecisionSourceExhausted,
			"action payload malformed", err)
	}

	switch kind {
	case decision.KindProposeTeam:
		if len(action.Team) == 0 {
			return decision.Action{}, apperrors.New(apperrors.CodeDecisionSourceExhausted,
				"proposal action missing team")
		}
	case decision.KindAssassinate:
		if action.Target < 0 {
			return decision.Action{}, apperrors.New(apperrors.CodeDecisionSourceExhausted,
				"assassination action missing target")
		}
	}
	return action, nil
}

// extractJSON returns the first balanced top-level JSON object in output.
func extractJSON(output string) (string, error) {
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return "", apperrors.New(apperrors.CodeDecisionSourceExhausted,
			"no JSON object in provider output")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return output[start : i+1], nil
			}
		}
	}
	return "", apperrors.New(apperrors.CodeDecisionSourceExhausted,
		"unterminated JSON object in provider output")
}
