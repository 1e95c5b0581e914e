package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smart-tinker/ncrew/internal/log"
)

func TestCtxValues(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, log.ValuesFromCtx(ctx))

	ctx = log.CtxWithValues(ctx, log.Kv{"task": "t1"})
	ctx = log.CtxWithValues(ctx, log.Kv{"run": "run-1"})

	got := log.ValuesFromCtx(ctx)
	assert.Equal(t, log.Kv{"task": "t1", "run": "run-1"}, got)
}

func TestCtxValuesOverride(t *testing.T) {
	ctx := log.CtxWithValues(context.Background(), log.Kv{"task": "t1"})
	ctx = log.CtxWithValues(ctx, log.Kv{"task": "t2"})

	assert.Equal(t, log.Kv{"task": "t2"}, log.ValuesFromCtx(ctx))
}

func TestCtxValuesDoNotLeakToParent(t *testing.T) {
	parent := context.Background()
	_ = log.CtxWithValues(parent, log.Kv{"task": "t1"})

	assert.Empty(t, log.ValuesFromCtx(parent))
}
