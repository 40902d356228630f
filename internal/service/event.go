package service

import (
	"context"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

type eventService struct {
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
	assetRepo repository.AssetRepository
	reminders ReminderScheduler
}

func NewEventService(
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	assetRepo repository.AssetRepository,
	reminders ReminderScheduler,
) EventService {
	return &eventService{
		eventRepo: eventRepo,
		userRepo:  userRepo,
		assetRepo: assetRepo,
		reminders: reminders,
	}
}

func (s *eventService) Create(ctx context.Context, e *domain.Event) error {
	logger.EnterMethod("eventService.Create", "userID", e.UserID, "start", e.Start)

	if err := s.check(ctx, e); err != nil {
		logger.ExitMethodWithError("eventService.Create", err)
		return err
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		logger.ExitMethodWithError("eventService.Create", err)
		return err
	}
	s.schedule(ctx, e)

	logger.ExitMethod("eventService.Create", "eventID", e.ID)
	return nil
}

func (s *eventService) Update(ctx context.Context, actor *domain.User, e *domain.Event) error {
	logger.EnterMethod("eventService.Update", "eventID", e.ID)

	cur, err := s.eventRepo.GetByID(ctx, e.ID)
	if err != nil {
		logger.ExitMethodWithError("eventService.Update", err)
		return err
	}
	if !cur.CanBeManagedBy(actor) {
		err := domain.NewForbidden("update event", "event %d belongs to another user", e.ID)
		logger.ExitMethodWithError("eventService.Update", err)
		return err
	}
	// Ownership does not move on edit.
	e.UserID = cur.UserID
	e.CreatedOn = cur.CreatedOn
	if err := s.check(ctx, e); err != nil {
		logger.ExitMethodWithError("eventService.Update", err)
		return err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		logger.ExitMethodWithError("eventService.Update", err)
		return err
	}
	s.schedule(ctx, e)

	logger.ExitMethod("eventService.Update", "eventID", e.ID)
	return nil
}

func (s *eventService) Delete(ctx context.Context, actor *domain.User, id int32) error {
	logger.EnterMethod("eventService.Delete", "eventID", id)

	cur, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		logger.ExitMethodWithError("eventService.Delete", err)
		return err
	}
	if !cur.CanBeManagedBy(actor) {
		err := domain.NewForbidden("delete event", "event %d belongs to another user", id)
		logger.ExitMethodWithError("eventService.Delete", err)
		return err
	}
	// Cancel first so a reminder never fires for a vanished event.
	if s.reminders != nil {
		if err := s.reminders.Cancel(ctx, id); err != nil {
			logger.ExitMethodWithError("eventService.Delete", err)
			return err
		}
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		logger.ExitMethodWithError("eventService.Delete", err)
		return err
	}

	logger.ExitMethod("eventService.Delete", "eventID", id)
	return nil
}

func (s *eventService) Get(ctx context.Context, id int32) (*domain.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *eventService) ListByUser(ctx context.Context, userID int32) ([]domain.Event, error) {
	return s.eventRepo.ListByUser(ctx, userID)
}

func (s *eventService) List(ctx context.Context) ([]domain.Event, error) {
	return s.eventRepo.List(ctx)
}

func (s *eventService) check(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, e.UserID); err != nil {
		return err
	}
	if e.AssetID != nil {
		if _, err := s.assetRepo.GetByID(ctx, *e.AssetID); err != nil {
			return err
		}
	}
	return nil
}

// schedule is best effort: the event is saved even if the reminder could
// not be recorded.
func (s *eventService) schedule(ctx context.Context, e *domain.Event) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Schedule(ctx, e); err != nil {
		logger.Error("Failed to schedule reminder", "eventID", e.ID, "error", err)
	}
}
