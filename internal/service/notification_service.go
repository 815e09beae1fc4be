package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// NotificationRepository is the notification storage contract.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationPusher delivers an event to a connected user, typically the
// WebSocket hub.
type NotificationPusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService stores notifications and pushes them to connected
// clients. It is the Notifier the usecases depend on.
type NotificationService struct {
	repo   NotificationRepository
	pusher NotificationPusher
	log    *logrus.Logger
}

func NewNotificationService(repo NotificationRepository, pusher NotificationPusher, log *logrus.Logger) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher, log: log}
}

// Notify stores the event and pushes it over WebSocket. Delivery is best
// effort: failures are logged, never propagated to the business flow that
// produced the event.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event string, payload any) {
	if _, err := s.CreateNotification(ctx, userID, event, payload); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"event":   event,
		}).Error("store notification")
	}
	if s.pusher == nil {
		return
	}
	if err := s.pusher.BroadcastToUser(userID, event, payload); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("push notification")
	}
}

// CreateNotification stores one event for a user.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) (*models.Notification, error) {
	payload := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "marshal notification payload")
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Payload: payloadBytes,
		IsRead:  false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

// ListNotifications returns a page of the user's notifications.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead marks one notification read; only its owner may.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		return apperror.New(apperror.ErrCodeForbidden, "notification belongs to another user")
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks every notification of the user read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread returns the user's unread count.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
