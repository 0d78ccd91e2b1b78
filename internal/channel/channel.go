// Package channel defines the adapter contract shared by every external
// notification channel: one ordered transport chain per channel, paced bulk
// sends, and failures reported as values instead of errors.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuition-notify/internal/domain"
)

// Message is a channel-ready notification produced by a Formatter.
type Message struct {
	Title string
	Body  string
	// HTML is an alternative body for transports that render markup (email).
	HTML string
	Data map[string]string
}

// Result is the outcome of a single send.
type Result struct {
	Success           bool
	ProviderMessageID string
	Err               error
}

// BulkResult aggregates a bulk send.
type BulkResult struct {
	Sent   int
	Failed int
}

// Transport is one concrete way of delivering a message on a channel
// (a provider API, a mail-submission server). Implementations return an error
// per failed send and never panic on provider rejections.
type Transport interface {
	Name() string
	Send(ctx context.Context, to string, msg Message) (providerID string, err error)
}

// SendWithFallback tries each transport in order and stops at the first success.
// When all fail it returns the last error, joined with ErrChannelDelivery.
func SendWithFallback(ctx context.Context, transports []Transport, to string, msg Message) (string, error) {
	if len(transports) == 0 {
		return "", domain.ErrChannelUnavailable
	}
	var last error
	for _, t := range transports {
		if err := ctx.Err(); err != nil {
			return "", errors.Join(domain.ErrChannelDelivery, err)
		}
		pid, err := t.Send(ctx, to, msg)
		if err == nil {
			return pid, nil
		}
		last = fmt.Errorf("%s: %w", t.Name(), err)
	}
	return "", errors.Join(domain.ErrChannelDelivery, last)
}
