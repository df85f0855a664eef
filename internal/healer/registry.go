package healer

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

// Executor performs one remediation action. Implementations must be safe to
// retry and should honour ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, req models.HealingRequest) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req models.HealingRequest) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req models.HealingRequest) error {
	return f(ctx, req)
}

// Registry binds every action identifier to its executor. It is built once at
// startup and read-only afterwards.
type Registry struct {
	executors map[models.ActionID]Executor
}

// NewRegistry validates that every known action has an executor.
func NewRegistry(executors map[models.ActionID]Executor) (*Registry, error) {
	var missing []string
	for _, action := range models.Actions() {
		if executors[action] == nil {
			missing = append(missing, string(action))
		}
	}
	for _, category := range models.Categories() {
		if action, ok := models.ActionFor(category); ok && executors[action] == nil {
			missing = append(missing, string(action))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, utils.NewAppError("healer.registry", "missing executors", errors.New(strings.Join(dedupe(missing), ", ")))
	}

	copied := make(map[models.ActionID]Executor, len(executors))
	for action, executor := range executors {
		copied[action] = executor
	}
	return &Registry{executors: copied}, nil
}

// Lookup returns the executor bound to action.
func (r *Registry) Lookup(action models.ActionID) (Executor, bool) {
	if r == nil {
		return nil, false
	}
	executor, ok := r.executors[action]
	return executor, ok
}

// Actions lists the registered action identifiers in sorted order.
func (r *Registry) Actions() []models.ActionID {
	out := make([]models.ActionID, 0, len(r.executors))
	for action := range r.executors {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupe(values []string) []string {
	out := values[:0]
	for i, v := range values {
		if i > 0 && values[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
