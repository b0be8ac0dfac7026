// Package automation runs the timer-driven sweeps: bump, restock and
// statistics. Each automation owns its own session and schedule; they
// may overlap in wall clock time but share nothing mutable except the
// append-only log sink.
package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lotkeeper/lib/logsink"
)

// Automation is the capability surface an embedding shell drives. All
// implementations must make Activate idempotent: re-activating with
// the same inputs (tab re-entry) is a no-op, re-activating with a new
// golden key rebuilds the session.
type Automation interface {
	Name() string
	Activate(goldenKey string, nodeIDs []string) error
	BindLog(sink *logsink.Sink)
	Run(ctx context.Context)
	Stop()
}

// Registry dispatches automations by id. Plain map lookup instead of
// type-switch cascades: adding an automation means one Register call.
type Registry struct {
	mu          sync.RWMutex
	automations map[string]Automation
}

func NewRegistry() *Registry {
	return &Registry{automations: map[string]Automation{}}
}

func (r *Registry) Register(a Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.automations[a.Name()]
	if exists {
		return fmt.Errorf("automation %q already registered", a.Name())
	}
	r.automations[a.Name()] = a
	return nil
}

func (r *Registry) Lookup(name string) (Automation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.automations[name]
	return a, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.automations))
	for name := range r.automations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
