package platform

import (
	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/infrastructure/fcm"
	"github.com/tuition-notify/internal/infrastructure/postmark"
	"github.com/tuition-notify/internal/infrastructure/smtp"
	"github.com/tuition-notify/internal/infrastructure/sns"
	"github.com/tuition-notify/internal/infrastructure/telegram"
	"github.com/tuition-notify/internal/infrastructure/twilio"
)

// Channels are the adapters that could be built from configuration.
type Channels struct {
	Senders map[domain.Channel]dispatch.Sender
	// Telegram is nil when no bot is configured.
	Telegram *channel.Adapter
}

// BuildChannels assembles each channel's transport chain in fallback order:
// email postmark then smtp, push fcm then sns. Unconfigured transports are
// logged and left out; a channel with none is absent from Senders.
func BuildChannels(cfg *config.Config) Channels {
	timeout := cfg.Dispatch.SendTimeout
	chains := map[domain.Channel][]channel.Transport{}

	if s, err := postmark.NewSender(cfg.Email, timeout); err != nil {
		unavailable(domain.ChannelEmail, "postmark", err)
	} else {
		chains[domain.ChannelEmail] = append(chains[domain.ChannelEmail], s)
	}
	if m, err := smtp.NewMailer(cfg.SMTP); err != nil {
		unavailable(domain.ChannelEmail, "smtp", err)
	} else {
		chains[domain.ChannelEmail] = append(chains[domain.ChannelEmail], m)
	}
	if c, err := twilio.NewClient(cfg.Twilio, timeout); err != nil {
		unavailable(domain.ChannelWhatsApp, "twilio", err)
	} else {
		chains[domain.ChannelWhatsApp] = append(chains[domain.ChannelWhatsApp], c)
	}
	if b, err := telegram.NewBot(cfg.Telegram, timeout); err != nil {
		unavailable(domain.ChannelTelegram, "telegram", err)
	} else {
		chains[domain.ChannelTelegram] = append(chains[domain.ChannelTelegram], b)
	}
	if c, err := fcm.NewClient(cfg.FCM, timeout); err != nil {
		unavailable(domain.ChannelPush, "fcm", err)
	} else {
		chains[domain.ChannelPush] = append(chains[domain.ChannelPush], c)
	}
	if s, err := sns.NewPushSender(cfg); err != nil {
		unavailable(domain.ChannelPush, "sns", err)
	} else {
		chains[domain.ChannelPush] = append(chains[domain.ChannelPush], s)
	}

	opts := channel.Options{Interval: cfg.Dispatch.SendInterval, Timeout: timeout}
	out := Channels{Senders: make(map[domain.Channel]dispatch.Sender, len(chains))}
	for _, ch := range domain.DeliveryChannels() {
		a, err := channel.NewAdapter(ch, opts, chains[ch]...)
		if err != nil {
			log.Warn().Err(err).Msg("channel disabled")
			continue
		}
		log.Info().Str("channel", string(ch)).Strs("transports", a.Transports()).Msg("channel ready")
		out.Senders[ch] = a
		if ch == domain.ChannelTelegram {
			out.Telegram = a
		}
	}
	return out
}

func unavailable(ch domain.Channel, transport string, err error) {
	log.Debug().Err(err).Str("channel", string(ch)).Str("transport", transport).Msg("transport not configured")
}
