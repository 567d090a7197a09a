package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesSubscribers(t *testing.T) {
	b := NewBus()

	var received []Event
	b.Subscribe(PushCompleted, func(ctx context.Context, evt Event) error {
		received = append(received, evt)
		return nil
	})

	evt := NewPushCompletedEvent(PushCompletedPayloadV1{UserID: "u1", Synced: 3})
	require.NoError(t, b.Publish(context.Background(), evt))

	require.Len(t, received, 1)
	assert.Equal(t, PushCompleted, received[0].Type)
	assert.Equal(t, EventSchemaVersion, received[0].Version)
}

func TestBus_UnsubscribedTypeIsNoOp(t *testing.T) {
	b := NewBus()
	err := b.Publish(context.Background(), NewPullCompletedEvent(PullCompletedPayloadV1{UserID: "u1"}))
	assert.NoError(t, err)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	b := NewBus()

	calls := 0
	b.Subscribe(ConflictDetected, func(ctx context.Context, evt Event) error {
		calls++
		return errors.New("boom")
	})
	b.Subscribe(ConflictDetected, func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})

	err := b.Publish(context.Background(), NewConflictDetectedEvent(ConflictDetectedPayloadV1{ConflictID: "c1"}))
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
