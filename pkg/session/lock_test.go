package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/blueprint/pkg/adapters/memory"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LockLifecycle(t *testing.T) {
	gw := memory.NewGateway()
	mgr := NewManager(gw)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		res, err := gw.UpsertGraph(ctx, ports.UpsertRequest{Title: fmt.Sprintf("bp-%d", i), Graph: domain.NewGraph("root")})
		require.NoError(t, err)
		_, err = mgr.Open(ctx, res.BlueprintID)
		require.NoError(t, err)
		require.NoError(t, mgr.Release(ctx, res.BlueprintID))
	}

	assert.Empty(t, mgr.locks, "lock entries are garbage collected")
	assert.Empty(t, mgr.sessions)
}
