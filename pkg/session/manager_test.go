package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/blueprint/pkg/adapters/memory"
	"github.com/aretw0/blueprint/pkg/adapters/redis"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/aretw0/blueprint/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGateway counts GetBlueprint calls and slows them down to provoke races.
type countingGateway struct {
	ports.Gateway
	gets atomic.Int32
}

func (g *countingGateway) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	g.gets.Add(1)
	time.Sleep(10 * time.Millisecond)
	return g.Gateway.GetBlueprint(ctx, id)
}

func seed(t *testing.T, gw ports.Gateway) string {
	t.Helper()
	res, err := gw.UpsertGraph(context.Background(), ports.UpsertRequest{Title: "Seed", Graph: domain.NewGraph("root")})
	require.NoError(t, err)
	return res.BlueprintID
}

func TestManager_SharesOneEnginePerBlueprint(t *testing.T) {
	gw := &countingGateway{Gateway: memory.NewGateway()}
	id := seed(t, gw)
	m := session.NewManager(gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	engines := make([]any, 10)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := m.Open(ctx, id)
			assert.NoError(t, err)
			engines[i] = eng
		}(i)
	}
	wg.Wait()

	for _, eng := range engines[1:] {
		assert.Same(t, engines[0], eng)
	}
	assert.Equal(t, int32(1), gw.gets.Load(), "the blueprint is hydrated once")
	assert.Equal(t, []string{id}, m.List())

	for range engines {
		require.NoError(t, m.Release(ctx, id))
	}
	assert.Empty(t, m.List())
	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestManager_ReleaseFlushesEdits(t *testing.T) {
	gw := memory.NewGateway()
	id := seed(t, gw)
	m := session.NewManager(gw)
	ctx := context.Background()

	eng, err := m.Open(ctx, id)
	require.NoError(t, err)
	child := eng.AddNode("step", domain.Position{X: 50})

	require.NoError(t, m.Release(ctx, id))

	got, err := gw.GetBlueprint(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Graph.HasNode(child))
	assert.Equal(t, uint64(2), got.Blueprint.AutosaveVersion)
	assert.ErrorIs(t, eng.Save(ctx), domain.ErrDisposed, "released engines are closed")
}

func TestManager_ReleaseUnknown(t *testing.T) {
	m := session.NewManager(memory.NewGateway())
	assert.ErrorIs(t, m.Release(context.Background(), "nope"), session.ErrUnknownSession)
}

func TestManager_OpenMissingBlueprint(t *testing.T) {
	m := session.NewManager(memory.NewGateway())
	_, err := m.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
	assert.Empty(t, m.List())
}

func TestManager_DistributedLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gw := memory.NewGateway()
	id := seed(t, gw)
	ctx := context.Background()

	replicaA := session.NewManager(gw, session.WithLocker(redis.NewLocker(client, "test:"), time.Minute))
	replicaB := session.NewManager(gw, session.WithLocker(redis.NewLocker(client, "test:"), time.Minute))

	_, err := replicaA.Open(ctx, id)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:"+id))

	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = replicaB.Open(short, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a second replica waits for the lease")

	require.NoError(t, replicaA.Release(ctx, id))
	assert.False(t, mr.Exists("test:lock:"+id))

	_, err = replicaB.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, replicaB.Shutdown(ctx))
	assert.Empty(t, replicaB.List())
}

func TestManager_Watch(t *testing.T) {
	gw := memory.NewGateway()
	id := seed(t, gw)
	m := session.NewManager(gw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := m.Open(ctx, id)
	require.NoError(t, err)
	defer m.Release(context.Background(), id)

	snaps := m.Watch(ctx)
	first := <-snaps
	assert.Equal(t, id, first.Source)
	assert.Equal(t, id, first.State.BlueprintID)

	eng.AddNode("step", domain.Position{})
	require.Eventually(t, func() bool {
		select {
		case s := <-snaps:
			return s.State.Dirty
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
