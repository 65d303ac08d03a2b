package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := With(context.Background(), slog.String("delivery", "abc"))
	ctx = With(ctx, slog.Int("pr", 7))
	log.InfoContext(ctx, "handled")

	assert.Contains(t, buf.String(), "delivery=abc")
	assert.Contains(t, buf.String(), "pr=7")
}

func TestWith_DoesNotLeak(t *testing.T) {
	parent := With(context.Background(), slog.String("a", "1"))
	_ = With(parent, slog.String("b", "2"))
	assert.Len(t, Attrs(parent), 1)
	assert.Empty(t, Attrs(context.Background()))
}

func TestContextHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil))).With("component", "sweep")

	log.InfoContext(With(context.Background(), slog.String("run", "01H")), "done")
	assert.Contains(t, buf.String(), "component=sweep")
	assert.Contains(t, buf.String(), "run=01H")
}
