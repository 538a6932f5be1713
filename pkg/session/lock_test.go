package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewConversationStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Exchange(ctx, sid, "hi", func(context.Context, []domain.Turn) (string, error) { return "", nil })
		_ = mgr.Delete(ctx, sid)
	}

	assert.Empty(t, mgr.locks, "locks are released once unused")
}
