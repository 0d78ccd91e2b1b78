// Package dispatch fans a domain event out to the in-app store and every
// configured delivery channel.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/validate"
	"golang.org/x/sync/errgroup"
)

type Resolver interface {
	Resolve(ctx context.Context, ev domain.Event) (domain.Recipients, error)
}

type InAppStore interface {
	CreateBulk(ctx context.Context, recipients []domain.UserRef, title, message string, kind domain.Kind, relatedSubjectID string) (int, error)
}

// Sender delivers one message to many addresses. *channel.Adapter satisfies it.
type Sender interface {
	SendBulk(ctx context.Context, addresses []string, msg channel.Message) channel.BulkResult
}

// Claimer records that an event ID has been dispatched. Claim reports false
// when the ID was already claimed.
type Claimer interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

type Deps struct {
	Resolver Resolver
	Store    InAppStore
	// Channels holds the adapters that could be built. A delivery channel
	// missing from the map is reported as skipped.
	Channels   map[domain.Channel]Sender
	Formatters map[domain.Channel]channel.Formatter
	Claimer    Claimer
	// TaskTimeout bounds each channel task and the in-app write. Zero disables it.
	TaskTimeout time.Duration
}

type Dispatcher struct {
	resolver    Resolver
	store       InAppStore
	channels    map[domain.Channel]Sender
	formatters  map[domain.Channel]channel.Formatter
	claimer     Claimer
	taskTimeout time.Duration
}

func NewDispatcher(d Deps) *Dispatcher {
	formatters := d.Formatters
	if formatters == nil {
		formatters = channel.Formatters()
	}
	channels := d.Channels
	if channels == nil {
		channels = map[domain.Channel]Sender{}
	}
	return &Dispatcher{
		resolver:    d.Resolver,
		store:       d.Store,
		channels:    channels,
		formatters:  formatters,
		claimer:     d.Claimer,
		taskTimeout: d.TaskTimeout,
	}
}

// Dispatch runs one fan-out and reports what happened. It never returns an
// error and never panics; every failure ends up in the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event, content domain.Content) (out domain.DispatchOutcome) {
	out = domain.DispatchOutcome{EventID: ev.ID, Kind: ev.Kind, Channels: make(map[domain.Channel]domain.ChannelOutcome)}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Error = fmt.Sprintf("dispatch panic: %v", r)
		}
		logOutcome(out, time.Since(start))
	}()

	if err := validate.Struct(content); err != nil {
		out.Error = err.Error()
		return out
	}

	if ev.ID != "" && d.claimer != nil {
		fresh, err := d.claimer.Claim(ctx, ev.ID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("event claim failed, dispatching anyway")
		case !fresh:
			out.Duplicate = true
			return out
		}
	}

	recipients, err := d.resolver.Resolve(ctx, ev)
	if err != nil {
		out.Error = fmt.Sprintf("resolve recipients: %v", err)
		return out
	}

	channels := domain.DeliveryChannels()
	results := make([]domain.ChannelOutcome, len(channels))
	var inApp domain.InAppOutcome

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inApp = d.createInApp(gctx, ev, content, recipients.InApp)
		return nil
	})
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = d.deliver(gctx, ch, ev, content, recipients.Addresses(ch))
			return nil
		})
	}
	_ = g.Wait()

	out.InApp = inApp
	for i, ch := range channels {
		out.Channels[ch] = results[i]
	}
	return out
}

func (d *Dispatcher) createInApp(ctx context.Context, ev domain.Event, content domain.Content, ids []string) (res domain.InAppOutcome) {
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("in-app store panic: %v", r)
		}
	}()
	if len(ids) == 0 {
		return res
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	created, err := d.store.CreateBulk(ctx, domain.RefIDs(ids...), content.Title, content.Message, ev.Kind, ev.Subject.ID)
	res.Created = created
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, ch domain.Channel, ev domain.Event, content domain.Content, addresses []string) (res domain.ChannelOutcome) {
	sender, ok := d.channels[ch]
	if !ok || sender == nil {
		return domain.ChannelOutcome{Skipped: true, Error: domain.ErrChannelUnavailable.Error()}
	}
	if len(addresses) == 0 {
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = domain.ChannelOutcome{
				Attempted: len(addresses),
				Failed:    len(addresses),
				Error:     fmt.Sprintf("%s adapter panic: %v", ch, r),
			}
		}
	}()

	format, ok := d.formatters[ch]
	if !ok {
		format = channel.FormatWhatsApp
	}
	msg := format(ev, content)

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	br := sender.SendBulk(ctx, addresses, msg)
	// SendBulk collapses duplicate addresses, so Attempted follows what it reports.
	return domain.ChannelOutcome{Attempted: br.Sent + br.Failed, Succeeded: br.Sent, Failed: br.Failed}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.taskTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.taskTimeout)
}

func logOutcome(out domain.DispatchOutcome, took time.Duration) {
	evt := log.Info()
	if out.Error != "" {
		evt = log.Error().Str("error", out.Error)
	}
	evt = evt.Str("event_id", out.EventID).
		Str("kind", string(out.Kind)).
		Bool("duplicate", out.Duplicate).
		Int("in_app_created", out.InApp.Created).
		Dur("took", took)
	if out.InApp.Error != "" {
		evt = evt.Str("in_app_error", out.InApp.Error)
	}
	for ch, co := range out.Channels {
		if co.Skipped {
			evt = evt.Bool(string(ch)+"_skipped", true)
			continue
		}
		evt = evt.Str(string(ch), fmt.Sprintf("%d/%d", co.Succeeded, co.Attempted))
	}
	evt.Msg("dispatch finished")
}
