// Package workgroup runs a bounded set of context-bound workers and collects
// the first failure.
package workgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Group struct {
	ctx   context.Context
	group *errgroup.Group
}

// WithContext creates a Group whose workers share a context that is canceled
// when the first of them fails. A limit above zero bounds how many run at
// once.
func WithContext(ctx context.Context, limit int) *Group {
	group, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	return &Group{ctx: gctx, group: group}
}

// Work starts fn, blocking while the Group is at its limit.
func (g *Group) Work(fn func(context.Context) error) {
	g.group.Go(func() error {
		return fn(g.ctx)
	})
}

// Wait blocks until every worker has returned and reports the first error.
func (g *Group) Wait() error {
	return g.group.Wait()
}
