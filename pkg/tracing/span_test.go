package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "build", "b-1")
	_, encode := StartChild(ctx, "encode")
	encode.SetAttr("terms", 42)
	encode.End(nil)
	_, write := StartChild(ctx, "write")
	write.End(errors.New("disk full"))
	root.End(nil)

	require.Same(t, root, FromContext(ctx))
	require.Len(t, root.Children(), 2)
	assert.Equal(t, "b-1", root.Children()[1].BuildID)

	var names []string
	root.Walk(func(s *Span, depth int) {
		names = append(names, strings.Repeat(">", depth)+s.Name)
	})
	assert.Equal(t, []string{"build", ">encode", ">write"}, names)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	assert.Contains(t, out, "span=encode")
	assert.Contains(t, out, "terms=42")
	assert.Contains(t, out, `error="disk full"`)
	assert.Equal(t, 3, strings.Count(out, "build_id=b-1"))
}

func TestStartChildWithoutParent(t *testing.T) {
	ctx, span := StartChild(context.Background(), "orphan")
	assert.Same(t, span, FromContext(ctx))
	assert.Empty(t, span.BuildID)
	assert.Nil(t, FromContext(context.Background()))
}
