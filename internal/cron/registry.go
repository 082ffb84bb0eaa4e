package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Job is one unit of scheduled work. Every job must tolerate being re-run
// after a partial failure.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order under unique names.
type Registry struct {
	order []string
	byKey map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("cron: nil job")
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return errors.New("cron: job name is empty")
	}
	if _, dup := r.byKey[name]; dup {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.byKey[name] = job
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Select returns the named jobs in registration order, or all of them when
// names is empty.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		names = r.order
	}
	var unknown []string
	for _, n := range names {
		if _, ok := r.byKey[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("cron: unknown job(s) %s, have %s",
			strings.Join(unknown, ","), strings.Join(r.order, ","))
	}

	jobs := make([]Job, 0, len(names))
	for _, n := range r.order {
		if slices.Contains(names, n) {
			jobs = append(jobs, r.byKey[n])
		}
	}
	return jobs, nil
}
