package backend

import (
	"context"
	"sync"
)

// ScriptedInvoker replays canned results in order. Useful for driving
// the agents and the coordinator without a real backend.
type ScriptedInvoker struct {
	mu      sync.Mutex
	script  []ScriptStep
	idx     int
	Prompts []string
}

// ScriptStep is one canned invocation outcome.
type ScriptStep struct {
	Text     string
	ExitCode int
	Err      error
}

// NewScriptedInvoker builds an invoker replaying the given steps. Once
// the script runs out, the last step repeats.
func NewScriptedInvoker(steps ...ScriptStep) *ScriptedInvoker {
	return &ScriptedInvoker{script: steps}
}

func (s *ScriptedInvoker) Invoke(ctx context.Context, prompt string, _ Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if len(s.script) == 0 {
		return Result{Text: "ok"}, nil
	}
	step := s.script[s.idx]
	if s.idx < len(s.script)-1 {
		s.idx++
	}
	if step.Err != nil {
		return Result{}, step.Err
	}
	return Result{Text: step.Text, ExitCode: step.ExitCode}, nil
}

// Calls reports how many invocations happened.
func (s *ScriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
