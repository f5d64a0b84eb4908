package links

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type Option func(*Resolver)

// WithObserver registers a callback invoked once per resolution with its source.
func WithObserver(fn func(Source)) Option {
	return func(r *Resolver) { r.observe = fn }
}

// Resolver turns a task id into a deep link. It never fails: a missing project id
// degrades to the project-less URL.
type Resolver struct {
	webURL     string
	strategies []Strategy
	logger     *zap.Logger
	observe    func(Source)
}

func NewResolver(webURL string, strategies []Strategy, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{webURL: webURL, strategies: strategies, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultResolver wires the fresh, stored, none chain.
func NewDefaultResolver(webURL string, lookup TaskLookup, store InsightStore, logger *zap.Logger, opts ...Option) *Resolver {
	chain := []Strategy{Fresh(lookup, store, logger), Stored(store, logger), None()}
	return NewResolver(webURL, chain, logger, opts...)
}

func (r *Resolver) Resolve(ctx context.Context, taskID string) Link {
	taskID = strings.TrimSpace(taskID)
	c := FirstNonEmpty(ctx, taskID, r.strategies...)
	link := Link{
		TaskID:    taskID,
		ProjectID: c.ProjectID,
		URL:       Build(r.webURL, taskID, c.ProjectID),
		Source:    c.Source,
	}

	fields := []zap.Field{
		zap.String("task_id", taskID),
		zap.String("project_id_source", string(c.Source)),
		zap.String("url", link.URL),
	}
	switch c.Source {
	case SourceFresh:
		r.logger.Debug("task link resolved", fields...)
	case SourceStored:
		r.logger.Warn("task link resolved from stored project id", fields...)
	default:
		r.logger.Warn("task link degraded without project id", fields...)
	}
	if r.observe != nil {
		r.observe(c.Source)
	}
	return link
}
