package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/service"
)

func TestWorkerDeliversQueuedEvents(t *testing.T) {
	inner := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(service.NewNotificationService(inner, nil, config.NotificationConfig{}), inner, nil, 8)

	var mu sync.Mutex
	var got []string
	w.Subscribe(events.EventSessionEnded, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Subject)
		return nil
	})

	for _, subject := range []string{"u1", "u2", "u3"} {
		require.NoError(t, w.Publish(context.Background(), events.NewEvent(events.EventSessionEnded, subject, nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1", "u2", "u3"}, got)
}

func TestWorkerDetachesRequestContext(t *testing.T) {
	inner := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(nil, inner, nil, 1)

	delivered := make(chan error, 1)
	inner.Subscribe(events.EventSessionStarted, func(ctx context.Context, _ events.Event) error {
		delivered <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Publish(ctx, events.NewEvent(events.EventSessionStarted, "u1", nil)))
	cancel()

	select {
	case err := <-delivered:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorkerQueueFull(t *testing.T) {
	inner := events.NewInMemoryDispatcher()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	inner.Subscribe(events.EventSessionRotated, func(context.Context, events.Event) error {
		started <- struct{}{}
		<-release
		return nil
	})
	w := StartNotificationWorker(nil, inner, nil, 1)

	require.NoError(t, w.Publish(context.Background(), events.NewEvent(events.EventSessionRotated, "u1", nil)))
	<-started
	require.NoError(t, w.Publish(context.Background(), events.NewEvent(events.EventSessionRotated, "u2", nil)))

	err := w.Publish(context.Background(), events.NewEvent(events.EventSessionRotated, "u3", nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorkerPublishAfterStop(t *testing.T) {
	w := StartNotificationWorker(nil, events.NewInMemoryDispatcher(), nil, 0)
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))

	err := w.Publish(context.Background(), events.NewEvent(events.EventSessionEnded, "u1", nil))
	assert.True(t, errors.Is(err, ErrStopped))
}
