package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// WaitUntil polls fetch every interval while keepWaiting holds. The first
// fetch happens immediately. onProgress sees every snapshot that keeps the
// wait going and onComplete the final one. Fetch errors end the wait.
func WaitUntil[T any](
	ctx context.Context,
	interval time.Duration,
	fetch func(ctx context.Context) (*T, error),
	keepWaiting func(*T) bool,
	onProgress, onComplete func(*T),
) (*T, error) {
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	for range ticker.C {
		snapshot, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if !keepWaiting(snapshot) {
			if onComplete != nil {
				onComplete(snapshot)
			}

			return snapshot, nil
		}

		if onProgress != nil {
			onProgress(snapshot)
		}
	}

	return nil, fmt.Errorf("waiting: %w", ctx.Err())
}

// Poller waits on workspaces and reports their status changes.
type Poller struct {
	interval time.Duration
	notifier quetzal.StatusNotifier
	logger   quetzal.Logger
}

// Wait polls the workspace returned by fetch while keepWaiting holds.
func (p *Poller) Wait(
	ctx context.Context,
	fetch func(ctx context.Context) (*quetzal.Workspace, error),
	keepWaiting func(*quetzal.Workspace) bool,
	opts *quetzal.WaitOptions,
) (*quetzal.Workspace, error) {
	if opts == nil {
		opts = &quetzal.WaitOptions{}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = p.interval
	}

	var last quetzal.WorkspaceStatus

	observe := func(ctx context.Context) (*quetzal.Workspace, error) {
		workspace, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if workspace.Status != last {
			p.notify(ctx, workspace)
			last = workspace.Status
		}

		return workspace, nil
	}

	return WaitUntil(ctx, interval, observe, keepWaiting, opts.OnProgress, opts.OnComplete)
}

func (p *Poller) notify(ctx context.Context, workspace *quetzal.Workspace) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.NotifyStatus(ctx, workspace); err != nil {
		p.logger.Warn("status notification failed", map[string]interface{}{
			"workspace": workspace.ID,
			"status":    string(workspace.Status),
			"error":     err.Error(),
		})
	}
}
