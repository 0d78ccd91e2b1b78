// Package memory holds process-local stores for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/pkg/id"
)

// NotificationStore keeps notifications in a map guarded by a mutex.
type NotificationStore struct {
	mu    sync.RWMutex
	items map[string]domain.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{items: make(map[string]domain.Notification)}
}

func (s *NotificationStore) Insert(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = id.NewObjectID()
	}
	s.items[n.ID] = *n
	return nil
}

func (s *NotificationStore) InsertMany(_ context.Context, ns []domain.Notification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = id.NewObjectID()
		}
		s.items[ns[i].ID] = ns[i]
	}
	return len(ns), nil
}

// ListByRecipient returns newest first; ties keep a stable ID order.
func (s *NotificationStore) ListByRecipient(_ context.Context, recipientID string, offset, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	var mine []domain.Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID {
			mine = append(mine, n)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(mine, func(a, b domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
	if offset >= len(mine) {
		return []domain.Notification{}, nil
	}
	end := min(offset+limit, len(mine))
	return mine[offset:end], nil
}

func (s *NotificationStore) CountByRecipient(_ context.Context, recipientID string) (int64, error) {
	return s.count(func(n domain.Notification) bool { return n.RecipientID == recipientID }), nil
}

func (s *NotificationStore) CountUnread(_ context.Context, recipientID string) (int64, error) {
	return s.count(func(n domain.Notification) bool { return n.RecipientID == recipientID && !n.Read }), nil
}

func (s *NotificationStore) count(match func(domain.Notification) bool) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c int64
	for _, n := range s.items {
		if match(n) {
			c++
		}
	}
	return c
}

func (s *NotificationStore) Get(_ context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.items[notificationID]
	if !ok || n.RecipientID != recipientID {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[notificationID]
	if !ok || n.RecipientID != recipientID {
		return nil, domain.ErrNotFound
	}
	n.Read = true
	s.items[notificationID] = n
	return &n, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for k, n := range s.items {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			s.items[k] = n
			modified++
		}
	}
	return modified, nil
}

func (s *NotificationStore) Delete(_ context.Context, notificationID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[notificationID]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotFound
	}
	delete(s.items, notificationID)
	return nil
}

// RepairKinds rewrites records with an unknown kind to system.
func (s *NotificationStore) RepairKinds(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fixed int64
	for k, n := range s.items {
		if !n.Kind.Valid() {
			n.Kind = domain.KindSystem
			s.items[k] = n
			fixed++
		}
	}
	return fixed, nil
}
