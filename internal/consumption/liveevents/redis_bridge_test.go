package liveevents

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBridgeSkipsOwnOriginAndRelaysForeign(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	local := NewBridge(client, "test:changes", "proc-a", zap.NewNop())
	remote := NewBridge(client, "test:changes", "proc-b", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan domain.ChangeEvent, 4)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- local.Run(ctx, ready, func(e domain.ChangeEvent) { received <- e })
	}()
	<-ready

	require.NoError(t, local.Publish(ctx, domain.ChangeEvent{ID: "own", Origin: "proc-a"}))
	require.NoError(t, remote.Publish(ctx, domain.ChangeEvent{ID: "foreign", Origin: "proc-b", Type: domain.ChangeAdded}))

	select {
	case event := <-received:
		assert.Equal(t, "foreign", event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected foreign event")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, received)
}

func TestNilBridgeIsInert(t *testing.T) {
	var b *Bridge
	assert.NoError(t, b.Publish(context.Background(), domain.ChangeEvent{}))
	ready := make(chan struct{})
	assert.NoError(t, b.Run(context.Background(), ready, func(domain.ChangeEvent) {}))
	<-ready
}
