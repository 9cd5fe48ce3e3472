package runtime

import (
	"fmt"
	"sync"

	"github.com/yungbote/slidebridge-backend/internal/domain/workflow"
)

type Pipeline interface {
	Type() workflow.JobType
	Run(ctx *Context) error
}

type Registry struct {
	mu        sync.RWMutex
	pipelines map[workflow.JobType]Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[workflow.JobType]Pipeline)}
}

func (r *Registry) Register(p Pipeline) error {
	if p == nil {
		return fmt.Errorf("nil pipeline")
	}
	t := p.Type()
	if t == "" {
		return fmt.Errorf("pipeline Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipelines[t]; exists {
		return fmt.Errorf("pipeline already registered for job_type=%s", t)
	}
	r.pipelines[t] = p
	return nil
}

func (r *Registry) Get(jobType workflow.JobType) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[jobType]
	return p, ok
}
