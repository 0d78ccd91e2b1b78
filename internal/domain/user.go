package domain

// Roles known to the directory.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// Channel names an external notification transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelPush     Channel = "push"
	ChannelInApp    Channel = "inapp"
)

// DeliveryChannels are the external channels a dispatch fans out to, in report order.
func DeliveryChannels() []Channel {
	return []Channel{ChannelEmail, ChannelWhatsApp, ChannelTelegram, ChannelPush}
}

// User is the slice of a directory entry the notification subsystem reads:
// identity, role, per-channel opt-ins and per-channel addresses.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`

	TelegramChatID string `json:"telegram_chat_id,omitempty"`
	FCMToken       string `json:"-"`

	EmailNotifications    bool `json:"email_notifications"`
	WhatsAppNotifications bool `json:"whatsapp_notifications"`
	TelegramNotifications bool `json:"telegram_notifications"`
	PushNotifications     bool `json:"push_notifications"`
}

// Address returns the user's destination on ch, or "" when none is known.
func (u User) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return u.Email
	case ChannelWhatsApp:
		return u.Phone
	case ChannelTelegram:
		return u.TelegramChatID
	case ChannelPush:
		return u.FCMToken
	case ChannelInApp:
		return u.ID
	}
	return ""
}

// OptedIn reports the user's opt-in flag for ch. In-app is always on.
func (u User) OptedIn(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return u.EmailNotifications
	case ChannelWhatsApp:
		return u.WhatsAppNotifications
	case ChannelTelegram:
		return u.TelegramNotifications
	case ChannelPush:
		return u.PushNotifications
	case ChannelInApp:
		return true
	}
	return false
}

// Eligible is true when the user opted in to ch and has an address for it.
func (u User) Eligible(ch Channel) bool {
	return u.OptedIn(ch) && u.Address(ch) != ""
}

// PreferenceUpdate is a partial update of opt-ins and addresses. Nil fields are left untouched.
type PreferenceUpdate struct {
	EmailNotifications    *bool   `json:"email_notifications"`
	WhatsAppNotifications *bool   `json:"whatsapp_notifications"`
	TelegramNotifications *bool   `json:"telegram_notifications"`
	PushNotifications     *bool   `json:"push_notifications"`
	Phone                 *string `json:"phone" validate:"omitempty,e164"`
	TelegramChatID        *string `json:"telegram_chat_id" validate:"omitempty,max=64"`
	FCMToken              *string `json:"fcm_token" validate:"omitempty,max=4096"`
}

// Empty reports whether the update changes nothing.
func (p PreferenceUpdate) Empty() bool {
	return p.EmailNotifications == nil && p.WhatsAppNotifications == nil &&
		p.TelegramNotifications == nil && p.PushNotifications == nil &&
		p.Phone == nil && p.TelegramChatID == nil && p.FCMToken == nil
}

// Apply returns a copy of u with the update applied.
func (p PreferenceUpdate) Apply(u User) User {
	if p.EmailNotifications != nil {
		u.EmailNotifications = *p.EmailNotifications
	}
	if p.WhatsAppNotifications != nil {
		u.WhatsAppNotifications = *p.WhatsAppNotifications
	}
	if p.TelegramNotifications != nil {
		u.TelegramNotifications = *p.TelegramNotifications
	}
	if p.PushNotifications != nil {
		u.PushNotifications = *p.PushNotifications
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.TelegramChatID != nil {
		u.TelegramChatID = *p.TelegramChatID
	}
	if p.FCMToken != nil {
		u.FCMToken = *p.FCMToken
	}
	return u
}
