package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const adminsCacheKey = "admins"

type notificationService struct {
	noteRepo  repository.NotificationRepository
	userRepo  repository.UserRepository
	deliverer Deliverer
	admins    *cache.Cache
	now       func() time.Time
}

// NewNotificationService wires persistence and realtime push. deliverer may
// be nil, in which case notifications are only stored.
func NewNotificationService(noteRepo repository.NotificationRepository, userRepo repository.UserRepository, deliverer Deliverer) NotificationService {
	return &notificationService{
		noteRepo:  noteRepo,
		userRepo:  userRepo,
		deliverer: deliverer,
		admins:    cache.New(time.Minute, 5*time.Minute),
		now:       time.Now,
	}
}

func (s *notificationService) Notify(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationService.Notify", "userID", n.UserID, "type", n.Type)

	if err := n.Validate(); err != nil {
		logger.ExitMethodWithError("notificationService.Notify", err)
		return err
	}
	n.CreatedOn = s.now()
	if n.EventDate.IsZero() {
		n.EventDate = n.CreatedOn
	}
	n.Read = false
	if err := s.noteRepo.Create(ctx, n); err != nil {
		logger.ExitMethodWithError("notificationService.Notify", err)
		return err
	}

	// The row is the source of truth; a failed push is recovered on next fetch.
	if s.deliverer != nil {
		if err := s.deliverer.Deliver(ctx, n.UserID, n); err != nil {
			logger.Warn("Realtime delivery failed", "userID", n.UserID, "notificationID", n.ID, "error", err)
		}
	}

	logger.ExitMethod("notificationService.Notify", "notificationID", n.ID)
	return nil
}

func (s *notificationService) NotifyAdmins(ctx context.Context, tpl domain.Notification) ([]domain.Notification, error) {
	ids, err := s.adminIDs(ctx)
	if err != nil {
		return nil, err
	}

	sent := make([]domain.Notification, 0, len(ids))
	for _, id := range ids {
		n := tpl
		n.UserID = id
		if err := s.Notify(ctx, &n); err != nil {
			return sent, err
		}
		sent = append(sent, n)
	}
	return sent, nil
}

func (s *notificationService) adminIDs(ctx context.Context) ([]int32, error) {
	if v, ok := s.admins.Get(adminsCacheKey); ok {
		return v.([]int32), nil
	}
	admins, err := s.userRepo.ListByRole(ctx, domain.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	ids := make([]int32, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	s.admins.SetDefault(adminsCacheKey, ids)
	return ids, nil
}

func (s *notificationService) List(ctx context.Context, userID int32) ([]domain.Notification, error) {
	return s.noteRepo.ListByUser(ctx, userID)
}

// MarkRead is idempotent for the recipient.
func (s *notificationService) MarkRead(ctx context.Context, id, actorID int32) error {
	if _, err := s.owned(ctx, "mark notification read", id, actorID); err != nil {
		return err
	}
	return s.noteRepo.MarkRead(ctx, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int32) (int64, error) {
	n, err := s.noteRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.Debug("Marked notifications read", "userID", userID, "count", n)
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, id, actorID int32) error {
	if _, err := s.owned(ctx, "delete notification", id, actorID); err != nil {
		return err
	}
	return s.noteRepo.Delete(ctx, id)
}

func (s *notificationService) owned(ctx context.Context, op string, id, actorID int32) (*domain.Notification, error) {
	n, err := s.noteRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actorID {
		return nil, domain.NewForbidden(op, "notification %d belongs to another user", id)
	}
	return n, nil
}
