package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running piece of the bot (sweepers, pollers) with
// explicit startup and shutdown.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime owns the ordered set of components. Start brings them up in
// registration order, Stop tears them down in reverse.
type Runtime struct {
	mu         sync.Mutex
	components []Component
	running    []Component
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, component)
}

// Start starts components in registration order; on failure the already
// started ones are stopped in reverse order and the runtime is left empty.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, component := range r.components {
		if err := component.Start(ctx); err != nil {
			stopErr := stopAll(ctx, r.running)
			r.running = nil
			return errors.Join(fmt.Errorf("start %s: %w", componentName(component), err), stopErr)
		}
		log.WithField("component", componentName(component)).Debug("started")
		r.running = append(r.running, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := stopAll(ctx, r.running)
	r.running = nil
	return err
}

func stopAll(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", componentName(component), err))
			continue
		}
		log.WithField("component", componentName(component)).Debug("stopped")
	}
	return stopErr
}

func componentName(c Component) string {
	return fmt.Sprintf("%T", c)
}
