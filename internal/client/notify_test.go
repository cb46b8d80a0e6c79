package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	messages []message
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.messages = append(p.messages, message{subject: subject, data: data})

	return p.err
}

func TestNATSNotifier_NotifyStatus(t *testing.T) {
	t.Parallel()

	t.Run("publishes one event per call", func(t *testing.T) {
		t.Parallel()

		publisher := &fakePublisher{}
		notifier := NewPublisherNotifier(publisher)
		notifier.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

		err := notifier.NotifyStatus(context.Background(), &quetzal.Workspace{
			ID:     42,
			Name:   "ws",
			Owner:  "alice",
			Status: quetzal.WorkspaceStatusCommitting,
		})
		require.NoError(t, err)
		require.Len(t, publisher.messages, 1)
		assert.Equal(t, "quetzal.workspaces.42.status", publisher.messages[0].subject)

		var event StatusEvent

		require.NoError(t, json.Unmarshal(publisher.messages[0].data, &event))
		assert.Equal(t, int64(42), event.WorkspaceID)
		assert.Equal(t, "alice", event.Owner)
		assert.Equal(t, quetzal.WorkspaceStatusCommitting, event.Status)
		assert.Equal(t, 2026, event.ObservedAt.Year())
	})

	t.Run("publish errors are wrapped", func(t *testing.T) {
		t.Parallel()

		errBroker := errors.New("no responders")
		notifier := NewPublisherNotifier(&fakePublisher{err: errBroker})

		err := notifier.NotifyStatus(context.Background(), &quetzal.Workspace{ID: 1})
		require.ErrorIs(t, err, errBroker)
	})

	t.Run("cancelled context publishes nothing", func(t *testing.T) {
		t.Parallel()

		publisher := &fakePublisher{}
		notifier := NewPublisherNotifier(publisher)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, notifier.NotifyStatus(ctx, &quetzal.Workspace{ID: 1}), context.Canceled)
		assert.Empty(t, publisher.messages)
	})

	t.Run("close without connection", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, NewPublisherNotifier(&fakePublisher{}).Close())
	})
}

func TestNewNATSNotifier_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewNATSNotifier("")
	require.ErrorIs(t, err, ErrNATSURLRequired)
}
