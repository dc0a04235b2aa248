// ABOUTME: Long-poll update loop for running without a public webhook
// ABOUTME: Drives getUpdates with an advancing offset and hands updates to a handler

package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Poller fetches updates via getUpdates and dispatches them one at a time.
// It is the alternative to webhook delivery; the webhook must be deleted
// before polling starts or Telegram refuses getUpdates.
type Poller struct {
	client  *Client
	handler func(ctx context.Context, update *Update) error
	logger  *slog.Logger

	// PollTimeout is the long-poll timeout passed to getUpdates, in seconds.
	PollTimeout int
	// RetryDelay is the pause after a failed getUpdates call.
	RetryDelay time.Duration
}

// NewPoller creates a poller dispatching to handler. A handler error means
// the update was not processed; the poller keeps the offset so the update
// is fetched again.
func NewPoller(client *Client, handler func(ctx context.Context, update *Update) error) *Poller {
	return &Poller{
		client:      client,
		handler:     handler,
		logger:      slog.Default().With("component", "poller"),
		PollTimeout: 30,
		RetryDelay:  3 * time.Second,
	}
}

// Run polls for updates until ctx is canceled. The offset only advances
// past an update after its handler succeeds, so a crash or a handler
// failure mid-batch redelivers the remainder; the dedup ledger downstream
// makes that redelivery safe.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		return err
	}

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Error("fetching updates failed", "error", err)
			if err := p.pause(ctx); err != nil {
				return err
			}
			continue
		}

		for _, update := range updates {
			if err := p.handler(ctx, &update); err != nil {
				// Offset stays put so the update is fetched again
				p.logger.Error("processing update failed, will refetch", "update_id", update.UpdateID, "error", err)
				if err := p.pause(ctx); err != nil {
					return err
				}
				break
			}
			offset = update.UpdateID + 1
		}
	}
}

// pause waits RetryDelay or until ctx is canceled.
func (p *Poller) pause(ctx context.Context) error {
	select {
	case <-time.After(p.RetryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
