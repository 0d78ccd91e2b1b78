package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/domain"
	"golang.org/x/time/rate"
)

// Options tunes an Adapter.
type Options struct {
	// Interval is the minimum gap between two sends of one bulk call. Zero disables pacing.
	Interval time.Duration
	// Timeout bounds each single send, fallbacks included. Zero means no extra bound.
	Timeout time.Duration
}

// Adapter delivers messages on one channel through an ordered transport chain.
type Adapter struct {
	channel    domain.Channel
	transports []Transport
	opts       Options
}

// NewAdapter builds the adapter for ch. Nil transports are ignored; when none
// remain the channel cannot deliver anything and ErrChannelUnavailable is returned.
func NewAdapter(ch domain.Channel, opts Options, transports ...Transport) (*Adapter, error) {
	usable := make([]Transport, 0, len(transports))
	for _, t := range transports {
		if t != nil {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%s: no transport configured: %w", ch, domain.ErrChannelUnavailable)
	}
	return &Adapter{channel: ch, transports: usable, opts: opts}, nil
}

// Channel returns the channel this adapter serves.
func (a *Adapter) Channel() domain.Channel { return a.channel }

// Transports lists the configured transport names in fallback order.
func (a *Adapter) Transports() []string {
	names := make([]string, len(a.transports))
	for i, t := range a.transports {
		names[i] = t.Name()
	}
	return names
}

// SendOne delivers msg to a single address. It never panics; all failures come back in Result.
func (a *Adapter) SendOne(ctx context.Context, address string, msg Message) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%s transport panic: %v: %w", a.channel, r, domain.ErrChannelDelivery)}
		}
	}()
	if address == "" {
		return Result{Err: fmt.Errorf("%s: empty address: %w", a.channel, domain.ErrChannelDelivery)}
	}
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	pid, err := SendWithFallback(ctx, a.transports, address, msg)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Success: true, ProviderMessageID: pid}
}

// SendBulk delivers msg to every distinct address, one at a time, paced by
// the configured interval. Addresses left unsent after ctx ends count as failed.
func (a *Adapter) SendBulk(ctx context.Context, addresses []string, msg Message) BulkResult {
	targets := distinct(addresses)
	var out BulkResult
	if len(targets) == 0 {
		return out
	}

	var limiter *rate.Limiter
	if a.opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(a.opts.Interval), 1)
	}

	for i, addr := range targets {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				out.Failed += len(targets) - i
				log.Warn().Err(err).Str("channel", string(a.channel)).Int("unsent", len(targets)-i).Msg("bulk send interrupted")
				return out
			}
		}
		res := a.SendOne(ctx, addr, msg)
		if res.Success {
			out.Sent++
			continue
		}
		out.Failed++
		log.Warn().Err(res.Err).Str("channel", string(a.channel)).Str("to", mask(addr)).Msg("send failed")
	}
	return out
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mask keeps logs free of full addresses and tokens.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
