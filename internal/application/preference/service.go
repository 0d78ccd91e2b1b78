package preference

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/messages"
	"github.com/tuition-notify/internal/pkg/validate"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error)
	ConnectTelegram(ctx context.Context, userID, chatID string) (*domain.User, error)
}

type userStore interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	UpdatePreferences(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error)
}

type messenger interface {
	SendOne(ctx context.Context, address string, msg channel.Message) channel.Result
}

type service struct {
	users    userStore
	telegram messenger
}

type ServiceDeps struct {
	Users userStore
	// Telegram sends the welcome message after connect. Optional.
	Telegram messenger
}

func NewService(deps ServiceDeps) Service {
	return &service{users: deps.Users, telegram: deps.Telegram}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("no preference to update: %w", domain.ErrValidation)
	}
	if err := validate.Struct(upd); err != nil {
		return nil, err
	}
	return s.users.UpdatePreferences(ctx, userID, upd)
}

// ConnectTelegram stores the chat ID, turns Telegram notifications on and
// greets the chat. A failed greeting does not undo the connection.
func (s *service) ConnectTelegram(ctx context.Context, userID, chatID string) (*domain.User, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required: %w", domain.ErrValidation)
	}
	on := true
	u, err := s.users.UpdatePreferences(ctx, userID, domain.PreferenceUpdate{TelegramChatID: &chatID, TelegramNotifications: &on})
	if err != nil {
		return nil, err
	}

	if s.telegram == nil {
		log.Warn().Str("user_id", userID).Msg("telegram not configured, skipping welcome message")
		return u, nil
	}
	welcome := messages.TelegramWelcome()
	res := s.telegram.SendOne(ctx, chatID, channel.Message{Title: welcome.Title, Body: welcome.Message})
	if !res.Success {
		log.Warn().Err(res.Err).Str("user_id", userID).Msg("telegram welcome message failed")
	}
	return u, nil
}
