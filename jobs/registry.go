package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/kendall-kelly/fabmarket-api/models"
)

// Handler executes one kind of task. Returning nil marks the job succeeded,
// a Retryable error requeues it, anything else fails it.
type Handler interface {
	TaskName() string
	Run(ctx context.Context, job *models.AnalysisJob) error
}

// Registry maps task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	name := h.TaskName()
	if name == "" {
		return fmt.Errorf("handler TaskName() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for task %s", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Get(taskName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskName]
	return h, ok
}
