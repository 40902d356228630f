package service

import (
	"context"
	"errors"
	"strings"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository"
)

type assetService struct {
	assetRepo repository.AssetRepository
	userRepo  repository.UserRepository
	locks     *keyedMutex
	metrics   *metrics.Metrics
}

func NewAssetService(assetRepo repository.AssetRepository, userRepo repository.UserRepository, m *metrics.Metrics) AssetService {
	return &assetService{
		assetRepo: assetRepo,
		userRepo:  userRepo,
		locks:     newKeyedMutex(),
		metrics:   m,
	}
}

func (s *assetService) Create(ctx context.Context, a *domain.Asset) error {
	logger.EnterMethod("assetService.Create", "title", a.Title)

	if a.State == "" {
		a.State = domain.AssetStateFree
	}
	if err := a.Validate(); err != nil {
		logger.ExitMethodWithError("assetService.Create", err)
		return err
	}
	if a.UserID != nil {
		if _, err := s.userRepo.GetByID(ctx, *a.UserID); err != nil {
			logger.ExitMethodWithError("assetService.Create", err)
			return err
		}
	}
	if err := s.assetRepo.Create(ctx, a); err != nil {
		logger.ExitMethodWithError("assetService.Create", err)
		return err
	}

	logger.ExitMethod("assetService.Create", "assetID", a.ID)
	return nil
}

func (s *assetService) Get(ctx context.Context, id int32) (*domain.Asset, error) {
	return s.assetRepo.GetByID(ctx, id)
}

func (s *assetService) List(ctx context.Context) ([]domain.Asset, error) {
	return s.assetRepo.List(ctx)
}

func (s *assetService) Update(ctx context.Context, in *domain.Asset) (*domain.Asset, error) {
	logger.EnterMethod("assetService.Update", "assetID", in.ID)

	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.NewValidationError("update asset", "title is required")
	}
	if in.TagID != nil && *in.TagID == "" {
		return nil, domain.NewValidationError("update asset", "tag id must not be empty when present")
	}

	unlock := s.locks.Lock(in.ID)
	defer unlock()

	cur, err := s.assetRepo.GetByID(ctx, in.ID)
	if err != nil {
		logger.ExitMethodWithError("assetService.Update", err)
		return nil, err
	}

	next := *cur
	if in.State != "" {
		ev, err := editEvent(cur, in)
		if err != nil {
			logger.ExitMethodWithError("assetService.Update", err)
			return nil, err
		}
		if ev != nil {
			next, err = s.transition(ctx, cur, *ev)
			if err != nil {
				logger.ExitMethodWithError("assetService.Update", err)
				return nil, err
			}
		}
	}

	next.Title = in.Title
	next.Category = in.Category
	next.Description = in.Description
	next.Location = in.Location
	next.TagID = in.TagID
	if !in.AcquisitionDate.IsZero() {
		next.AcquisitionDate = in.AcquisitionDate
	}
	if err := s.assetRepo.Update(ctx, &next); err != nil {
		logger.ExitMethodWithError("assetService.Update", err)
		return nil, err
	}

	logger.ExitMethod("assetService.Update", "assetID", next.ID, "state", next.State)
	return &next, nil
}

// editEvent turns the state/user pair of a generic edit into a single state
// machine event. A pair that would break the holder invariant is rejected.
func editEvent(cur, in *domain.Asset) (*domain.AssetEvent, error) {
	if !in.State.Valid() {
		return nil, domain.NewValidationError("update asset", "unknown state %q", in.State)
	}
	if in.Inconsistent() {
		return nil, domain.NewValidationError("update asset", "user must be set exactly when state is %s", domain.AssetStateOnLoan)
	}
	if in.State == domain.AssetStateOnLoan {
		if cur.IsHeldBy(*in.UserID) {
			return nil, nil
		}
		if cur.State == domain.AssetStateOnLoan {
			return nil, domain.NewConflict("update asset", "asset %d is already on loan", cur.ID)
		}
		ev := domain.AssignTo(*in.UserID)
		return &ev, nil
	}
	if in.State == cur.State && cur.UserID == nil {
		return nil, nil
	}
	ev := domain.SetState(in.State)
	return &ev, nil
}

func (s *assetService) Delete(ctx context.Context, id int32) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.assetRepo.Delete(ctx, id)
}

func (s *assetService) Assign(ctx context.Context, assetID, userID int32) (*domain.Asset, error) {
	return s.Apply(ctx, assetID, domain.AssignTo(userID))
}

func (s *assetService) AssignFromFree(ctx context.Context, assetID, userID int32) (*domain.Asset, error) {
	unlock := s.locks.Lock(assetID)
	defer unlock()

	cur, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if cur.State != domain.AssetStateFree {
		s.metrics.AssetTransition(string(domain.AssetEventAssign), "conflict")
		return nil, domain.NewConflict("assign", "asset %d is %s", cur.ID, cur.State)
	}
	next, err := s.transition(ctx, cur, domain.AssignTo(userID))
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *assetService) Release(ctx context.Context, assetID int32) (*domain.Asset, error) {
	return s.Apply(ctx, assetID, domain.Release())
}

func (s *assetService) SetState(ctx context.Context, assetID int32, state domain.AssetState) (*domain.Asset, error) {
	return s.Apply(ctx, assetID, domain.SetState(state))
}

// Apply is the single serialized entry point for state changes: per-asset
// lock in process, conditional write at the store.
func (s *assetService) Apply(ctx context.Context, assetID int32, ev domain.AssetEvent) (*domain.Asset, error) {
	logger.EnterMethod("assetService.Apply", "assetID", assetID, "event", ev.Type)

	unlock := s.locks.Lock(assetID)
	defer unlock()

	cur, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		logger.ExitMethodWithError("assetService.Apply", err, "assetID", assetID)
		return nil, err
	}
	next, err := s.transition(ctx, cur, ev)
	if err != nil {
		logger.ExitMethodWithError("assetService.Apply", err, "assetID", assetID)
		return nil, err
	}

	logger.ExitMethod("assetService.Apply", "assetID", assetID, "state", next.State)
	return &next, nil
}

// transition must be called with the asset lock held.
func (s *assetService) transition(ctx context.Context, cur *domain.Asset, ev domain.AssetEvent) (domain.Asset, error) {
	if ev.Type == domain.AssetEventAssign {
		if _, err := s.userRepo.GetByID(ctx, ev.UserID); err != nil {
			return *cur, err
		}
	}

	next, changed, err := domain.Transition(*cur, ev)
	if err != nil {
		result := "rejected"
		if errors.Is(err, domain.ErrConflict) {
			result = "conflict"
		}
		s.metrics.AssetTransition(string(ev.Type), result)
		return *cur, err
	}
	if !changed {
		s.metrics.AssetTransition(string(ev.Type), "noop")
		return next, nil
	}

	if err := s.assetRepo.UpdateIfState(ctx, &next, cur.State); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.AssetTransition(string(ev.Type), "conflict")
			logger.Warn("Asset changed underneath transition", "assetID", cur.ID, "expected", cur.State)
		}
		return *cur, err
	}
	s.metrics.AssetTransition(string(ev.Type), "applied")
	logger.Info("Asset transitioned", "assetID", cur.ID, "from", cur.State, "to", next.State)
	return next, nil
}
