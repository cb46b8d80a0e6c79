package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired = errors.New("NATS URL is required")
)

// Publisher sends a message on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// StatusEvent is the payload published for a workspace status change.
type StatusEvent struct {
	WorkspaceID int64                   `json:"workspace_id"`
	Name        string                  `json:"name"`
	Owner       string                  `json:"owner"`
	Status      quetzal.WorkspaceStatus `json:"status"`
	ObservedAt  time.Time               `json:"observed_at"`
}

// NATSNotifier publishes workspace status changes to NATS, one subject per
// workspace: quetzal.workspaces.<id>.status.
type NATSNotifier struct {
	publisher Publisher
	conn      *nats.Conn
	now       func() time.Time
}

// NewNATSNotifier connects to the NATS server at natsURL.
func NewNATSNotifier(natsURL string, opts ...nats.Option) (*NATSNotifier, error) {
	if natsURL == "" {
		return nil, ErrNATSURLRequired
	}

	opts = append([]nats.Option{nats.Name("quetzal-client")}, opts...)

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	notifier := NewPublisherNotifier(conn)
	notifier.conn = conn

	return notifier, nil
}

// NewPublisherNotifier creates a notifier over an existing publisher.
func NewPublisherNotifier(publisher Publisher) *NATSNotifier {
	return &NATSNotifier{
		publisher: publisher,
		now:       time.Now,
	}
}

// StatusSubject returns the subject of status events of a workspace.
func StatusSubject(workspaceID int64) string {
	return constants.WorkspaceStatusSubjectPrefix + strconv.FormatInt(workspaceID, 10) + ".status"
}

// NotifyStatus implements quetzal.StatusNotifier.
func (n *NATSNotifier) NotifyStatus(ctx context.Context, workspace *quetzal.Workspace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(StatusEvent{
		WorkspaceID: workspace.ID,
		Name:        workspace.Name,
		Owner:       workspace.Owner,
		Status:      workspace.Status,
		ObservedAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	if err := n.publisher.Publish(StatusSubject(workspace.ID), data); err != nil {
		return fmt.Errorf("publishing status event: %w", err)
	}

	return nil
}

// Close drains the NATS connection opened by NewNATSNotifier.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}

	if err := n.conn.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}
