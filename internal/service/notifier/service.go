package notifier

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
	"github.com/petmatch/clinic-api/pkg/logger"
	"github.com/petmatch/clinic-api/pkg/messaging"
)

const pushChannel = "notifications:push"

// Notifier is the gateway for in-app notifications. Invite notifications are
// tagged with the invite token so re-notifying the same invite is a no-op.
type Notifier interface {
	NotifyInvite(ctx context.Context, accountID uuid.UUID, invite *model.Invite, clinicName, patientName string) error
	RemoveInviteNotification(ctx context.Context, accountID uuid.UUID, token string) error
	ListForUser(ctx context.Context, accountID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
}

type Service struct {
	notifications repository.NotificationRepository
	broker        messaging.Broker
	logger        *logger.Logger
}

func NewService(notifications repository.NotificationRepository, broker messaging.Broker, logger *logger.Logger) *Service {
	return &Service{
		notifications: notifications,
		broker:        broker,
		logger:        logger,
	}
}

// NotifyInvite creates the standing in-app notification for a pending invite.
// Idempotent per (account, invite token): an existing row is left untouched.
func (s *Service) NotifyInvite(ctx context.Context, accountID uuid.UUID, invite *model.Invite, clinicName, patientName string) error {
	exists, err := s.notifications.ExistsByTypeAndTag(ctx, accountID, model.NotificationTypeClinicInvite, invite.Token)
	if err != nil {
		return fmt.Errorf("failed to check existing notification: %w", err)
	}
	if exists {
		return nil
	}

	notification := &model.Notification{
		Base:    model.Base{ID: uuid.New()},
		UserID:  accountID,
		Type:    model.NotificationTypeClinicInvite,
		Title:   fmt.Sprintf("%s added %s", clinicName, patientName),
		Message: fmt.Sprintf("%s added your pet %s. Accept the invite to see its records in the app.", clinicName, patientName),
		Extra: model.ExtraData{
			"invite_token": invite.Token,
			"clinic_name":  clinicName,
			"patient_name": patientName,
		},
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.push(ctx, notification)
	return nil
}

// RemoveInviteNotification deletes the standing notification once the invite
// reaches a terminal state.
func (s *Service) RemoveInviteNotification(ctx context.Context, accountID uuid.UUID, token string) error {
	if err := s.notifications.DeleteByTypeAndTag(ctx, accountID, model.NotificationTypeClinicInvite, token); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, accountID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	return s.notifications.ListForUser(ctx, accountID, unreadOnly)
}

// push forwards the notification to the delivery channel. Best effort: a dead
// broker must not fail invite processing.
func (s *Service) push(ctx context.Context, notification *model.Notification) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, pushChannel, notification); err != nil {
		s.logger.Warn("failed to publish push notification",
			"user_id", notification.UserID.String(), "error", err.Error())
	}
}
