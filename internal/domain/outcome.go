package domain

// Recipients is the resolver's answer: who gets an in-app record and who is
// reachable on each external channel.
type Recipients struct {
	InApp    []string
	Email    []User
	WhatsApp []User
	Telegram []User
	Push     []User
}

// For returns the recipients of an external channel.
func (r Recipients) For(ch Channel) []User {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelWhatsApp:
		return r.WhatsApp
	case ChannelTelegram:
		return r.Telegram
	case ChannelPush:
		return r.Push
	}
	return nil
}

// Addresses returns the channel addresses of the recipients on ch.
func (r Recipients) Addresses(ch Channel) []string {
	users := r.For(ch)
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Address(ch))
	}
	return out
}

// ChannelOutcome aggregates one channel's part of a dispatch.
type ChannelOutcome struct {
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InAppOutcome reports the in-app bulk create.
type InAppOutcome struct {
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// DispatchOutcome is the per-dispatch summary. It is logged, never persisted.
type DispatchOutcome struct {
	EventID   string                     `json:"event_id,omitempty"`
	Kind      Kind                       `json:"kind"`
	InApp     InAppOutcome               `json:"in_app"`
	Channels  map[Channel]ChannelOutcome `json:"channels"`
	Duplicate bool                       `json:"duplicate,omitempty"`
	Error     string                     `json:"error,omitempty"`
}
