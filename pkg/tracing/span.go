// Package tracing times the stages of an index build. Spans nest through
// the context and the finished tree is logged through slog under the build
// id.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage. Children are appended by StartChild and may be
// added concurrently.
type Span struct {
	Name     string
	BuildID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []slog.Attr
	err      error
}

// Start opens a root span for buildID and stores it in the returned context.
func Start(ctx context.Context, name, buildID string) (context.Context, *Span) {
	span := &Span{Name: name, BuildID: buildID, Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChild opens a span under the one in ctx. Without a parent it behaves
// like Start with an empty build id.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	child := &Span{Name: name, Start: time.Now()}
	if parent != nil {
		child.BuildID = parent.BuildID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span duration; err, if non-nil, marks the stage failed.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.err = err
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Span, len(s.children))
	copy(out, s.children)
	return out
}

// Walk visits s and its descendants depth first.
func (s *Span) Walk(fn func(span *Span, depth int)) {
	s.walk(fn, 0)
}

func (s *Span) walk(fn func(*Span, int), depth int) {
	fn(s, depth)
	for _, child := range s.Children() {
		child.walk(fn, depth+1)
	}
}

// Log writes one record per span in the tree.
func (s *Span) Log(logger *slog.Logger) {
	s.Walk(func(span *Span, depth int) {
		span.mu.Lock()
		attrs := []slog.Attr{
			slog.String("build_id", span.BuildID),
			slog.String("span", span.Name),
			slog.Int64("duration_ms", span.Duration.Milliseconds()),
			slog.Int("depth", depth),
		}
		attrs = append(attrs, span.attrs...)
		level := slog.LevelInfo
		if span.err != nil {
			attrs = append(attrs, slog.String("error", span.err.Error()))
			level = slog.LevelError
		}
		span.mu.Unlock()
		logger.LogAttrs(context.Background(), level, "span", attrs...)
	})
}
