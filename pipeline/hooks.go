package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/schema"
)

// Hook implements a by-inference constructor. It runs its queries through
// the engine of the current run.
type Hook func(ctx context.Context, engine *batch.Engine, c *schema.ByInference) error

// HookRegistry maps hook names to implementations.
type HookRegistry struct {
	logger *slog.Logger
	hooks  map[string]Hook
	mu     sync.RWMutex
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry(logger *slog.Logger) *HookRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookRegistry{
		logger: logger,
		hooks:  make(map[string]Hook),
	}
}

// Register adds a hook. Names are unique.
func (r *HookRegistry) Register(name string, h Hook) error {
	if name == "" || h == nil {
		return fmt.Errorf("hook name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hooks[name]; exists {
		return fmt.Errorf("hook already registered: %s", name)
	}
	r.hooks[name] = h
	r.logger.Debug("hook registered", slog.String("name", name))
	return nil
}

// Get looks up a hook.
func (r *HookRegistry) Get(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hooks[name]
	return h, ok
}

// Names returns the registered hook names, sorted.
func (r *HookRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
