package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRequiresCredentials(t *testing.T) {
	cases := []Credentials{
		{},
		{Key: "app"},
		{Cluster: "redis://localhost:6379"},
		{Key: "  ", Cluster: "redis://localhost:6379"},
	}
	for _, creds := range cases {
		_, err := Connect(context.Background(), creds, nil)
		assert.ErrorIs(t, err, ErrMissingCredentials, "creds=%+v", creds)
	}
}

func TestConnectRejectsUnknownScheme(t *testing.T) {
	_, err := Connect(context.Background(), Credentials{Key: "app", Cluster: "pusher://mt1"}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredentials)
}

func TestConnectMemoryScheme(t *testing.T) {
	conn, err := Connect(context.Background(), Credentials{Key: "app", Cluster: "memory://local"}, nil)
	require.NoError(t, err)
	_, ok := conn.(*Memory)
	assert.True(t, ok, "expected memory connection, got %T", conn)
}

func TestEncodeEnvelope(t *testing.T) {
	raw, err := EncodeEnvelope("new-order", map[string]string{"buyerName": "Rahim"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "new-order", env.Event)
	assert.JSONEq(t, `{"buyerName":"Rahim"}`, string(env.Data))

	raw, err = EncodeEnvelope("event-created", json.RawMessage(`{"name":"Dhaka Jazz"}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `{"name":"Dhaka Jazz"}`, string(env.Data))

	_, err = EncodeEnvelope(" ", nil)
	assert.Error(t, err)
}

func TestMemoryDeliversToBoundHandlers(t *testing.T) {
	ctx := context.Background()
	conn := NewMemory(nil)

	ch, err := conn.Subscribe(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", ch.Name())

	var got []string
	ch.Bind("new-order", func(_ context.Context, payload json.RawMessage) {
		got = append(got, string(payload))
	})

	require.NoError(t, conn.Publish(ctx, "tenant-1", "new-order", map[string]string{"eventName": "Expo"}))
	require.NoError(t, conn.Publish(ctx, "tenant-1", "unknown", nil))
	require.NoError(t, conn.Publish(ctx, "tenant-2", "new-order", map[string]string{"eventName": "Other"}))

	require.Len(t, got, 1)
	assert.JSONEq(t, `{"eventName":"Expo"}`, got[0])
}

func TestMemoryUnbindAllStopsDelivery(t *testing.T) {
	ctx := context.Background()
	conn := NewMemory(nil)
	ch, err := conn.Subscribe(ctx, "tenant-1")
	require.NoError(t, err)

	calls := 0
	ch.Bind("staff-invited", func(context.Context, json.RawMessage) { calls++ })
	ch.UnbindAll()
	require.NoError(t, conn.Publish(ctx, "tenant-1", "staff-invited", nil))
	assert.Zero(t, calls)
}

func TestMemorySubscribeIsIdempotentPerChannel(t *testing.T) {
	ctx := context.Background()
	conn := NewMemory(nil)
	first, err := conn.Subscribe(ctx, "tenant-1")
	require.NoError(t, err)
	second, err := conn.Subscribe(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"tenant-1"}, conn.Subscribed())

	require.NoError(t, conn.Unsubscribe(ctx, "tenant-1"))
	require.NoError(t, conn.Unsubscribe(ctx, "tenant-1"))
	assert.Empty(t, conn.Subscribed())
}

func TestMemoryDisconnect(t *testing.T) {
	ctx := context.Background()
	conn := NewMemory(nil)
	_, err := conn.Subscribe(ctx, "tenant-1")
	require.NoError(t, err)

	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())
	assert.True(t, conn.Closed())
	assert.Empty(t, conn.Subscribed())

	_, err = conn.Subscribe(ctx, "tenant-1")
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, conn.Publish(ctx, "tenant-1", "new-order", nil), ErrClosed)
}

func TestRegistryIgnoresMalformedPayloads(t *testing.T) {
	reg := newRegistry(logger.Nop())
	ch, _ := reg.add("tenant-1")
	called := false
	ch.Bind("new-order", func(context.Context, json.RawMessage) { called = true })

	reg.deliver(context.Background(), "tenant-1", []byte("not-json"))
	reg.deliver(context.Background(), "tenant-404", []byte(`{"event":"new-order"}`))
	assert.False(t, called)
}
