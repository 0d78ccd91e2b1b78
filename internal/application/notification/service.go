package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/id"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the persistence port for in-app notifications. Every read and
// write that takes a recipient ID is scoped to that recipient; a record owned
// by someone else is reported as domain.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, n *domain.Notification) error
	// InsertMany stores the records without ordering guarantees and returns how many were written.
	InsertMany(ctx context.Context, ns []domain.Notification) (int, error)
	ListByRecipient(ctx context.Context, recipientID string, offset, limit int) ([]domain.Notification, error)
	CountByRecipient(ctx context.Context, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	Get(ctx context.Context, id, recipientID string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) error
}

type Service interface {
	Create(ctx context.Context, recipientID, title, message string, kind domain.Kind, relatedSubjectID string) (*domain.Notification, error)
	CreateBulk(ctx context.Context, recipients []domain.UserRef, title, message string, kind domain.Kind, relatedSubjectID string) (int, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) (*domain.NotificationPage, error)
	Get(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, notificationID, userID string) error
}

type service struct {
	store   Store
	validID func(string) bool
	now     func() time.Time
}

func NewService(store Store) Service {
	return &service{store: store, validID: id.Valid, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Create(ctx context.Context, recipientID, title, message string, kind domain.Kind, relatedSubjectID string) (*domain.Notification, error) {
	if !s.validID(recipientID) {
		return nil, fmt.Errorf("malformed recipient id %q: %w", recipientID, domain.ErrValidation)
	}
	n, err := s.build(recipientID, title, message, kind, relatedSubjectID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, &n); err != nil {
		return nil, persistence("insert notification", err)
	}
	return &n, nil
}

func (s *service) CreateBulk(ctx context.Context, recipients []domain.UserRef, title, message string, kind domain.Kind, relatedSubjectID string) (int, error) {
	ids, dropped := domain.NormalizeRefs(recipients, s.validID)
	for _, err := range dropped {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("skipping notification recipient")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	records := make([]domain.Notification, 0, len(ids))
	for _, rid := range ids {
		n, err := s.build(rid, title, message, kind, relatedSubjectID)
		if err != nil {
			return 0, err
		}
		records = append(records, n)
	}
	created, err := s.store.InsertMany(ctx, records)
	if err != nil {
		return created, persistence("insert notifications", err)
	}
	return created, nil
}

func (s *service) build(recipientID, title, message string, kind domain.Kind, relatedSubjectID string) (domain.Notification, error) {
	if !kind.Valid() {
		return domain.Notification{}, fmt.Errorf("unknown notification kind %q: %w", kind, domain.ErrValidation)
	}
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return domain.Notification{}, fmt.Errorf("title and message are required: %w", domain.ErrValidation)
	}
	if relatedSubjectID != "" && !s.validID(relatedSubjectID) {
		log.Warn().Str("related_subject_id", relatedSubjectID).Str("kind", string(kind)).Msg("dropping malformed related subject id")
		relatedSubjectID = ""
	}
	return domain.Notification{
		RecipientID:      recipientID,
		Title:            title,
		Message:          message,
		Kind:             kind,
		RelatedSubjectID: relatedSubjectID,
		CreatedAt:        s.now(),
	}, nil
}

func (s *service) ListForUser(ctx context.Context, userID string, page, pageSize int) (*domain.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	records, err := s.store.ListByRecipient(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, persistence("list notifications", err)
	}
	total, err := s.store.CountByRecipient(ctx, userID)
	if err != nil {
		return nil, persistence("count notifications", err)
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, persistence("count unread", err)
	}
	if records == nil {
		records = []domain.Notification{}
	}
	return &domain.NotificationPage{
		Records:  records,
		Total:    total,
		Unread:   unread,
		Page:     page,
		PageSize: pageSize,
		Pages:    int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

func (s *service) Get(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.store.Get(ctx, notificationID, userID)
	if err != nil {
		return nil, persistence("get notification", err)
	}
	return n, nil
}

// MarkRead only touches a record owned by userID; anything else is ErrNotFound.
func (s *service) MarkRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.store.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return nil, persistence("mark read", err)
	}
	return n, nil
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return n, persistence("mark all read", err)
	}
	return n, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, persistence("count unread", err)
	}
	return n, nil
}

func (s *service) Delete(ctx context.Context, notificationID, userID string) error {
	if err := s.store.Delete(ctx, notificationID, userID); err != nil {
		return persistence("delete notification", err)
	}
	return nil
}

// persistence wraps store failures as ErrPersistence; not-found and validation pass through.
func persistence(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrPersistence, err))
}
