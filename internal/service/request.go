package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository"
)

type requestService struct {
	requestRepo repository.RequestRepository
	assetRepo   repository.AssetRepository
	userRepo    repository.UserRepository
	assets      AssetService
	notes       NotificationService
	mailer      Mailer
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	assetRepo repository.AssetRepository,
	userRepo repository.UserRepository,
	assets AssetService,
	notes NotificationService,
	mailer Mailer,
	m *metrics.Metrics,
) RequestService {
	if mailer == nil {
		mailer = noopMailer{}
	}
	return &requestService{
		requestRepo: requestRepo,
		assetRepo:   assetRepo,
		userRepo:    userRepo,
		assets:      assets,
		notes:       notes,
		mailer:      mailer,
		metrics:     m,
		now:         time.Now,
	}
}

func (s *requestService) CreateRequest(ctx context.Context, userID, assetID int32, title, motivation string) (*domain.Request, error) {
	logger.EnterMethod("requestService.CreateRequest", "userID", userID, "assetID", assetID)

	req := &domain.Request{
		Title:      title,
		Motivation: motivation,
		UserID:     userID,
		AssetID:    assetID,
		Status:     domain.RequestStatusPending,
	}
	if err := req.Validate(); err != nil {
		logger.ExitMethodWithError("requestService.CreateRequest", err)
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.ExitMethodWithError("requestService.CreateRequest", err)
		return nil, err
	}
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		logger.ExitMethodWithError("requestService.CreateRequest", err)
		return nil, err
	}

	req.CreatedOn = s.now()
	if err := s.requestRepo.Create(ctx, req); err != nil {
		logger.ExitMethodWithError("requestService.CreateRequest", err)
		return nil, err
	}
	logger.Info("Request created", "requestID", req.ID, "userID", userID, "assetID", assetID)

	_, err = s.notes.NotifyAdmins(ctx, domain.Notification{
		Type:        domain.NotificationTypeNewRequest,
		Title:       "New Request",
		Description: fmt.Sprintf("%s requested %q: %s", user.Name, asset.Title, req.Title),
		RequestID:   &req.ID,
		AssetID:     &asset.ID,
		EventDate:   req.CreatedOn,
	})
	if err != nil {
		logger.Error("Failed to notify admins of new request", "requestID", req.ID, "error", err)
	}

	logger.ExitMethod("requestService.CreateRequest", "requestID", req.ID)
	return req, nil
}

// Approve tries to hand the target asset to the target user. An asset that
// is not available ends the request as DENIED with a motive; that outcome is
// returned without an error.
func (s *requestService) Approve(ctx context.Context, requestID, targetAssetID, targetUserID int32) (*domain.Request, error) {
	logger.EnterMethod("requestService.Approve", "requestID", requestID, "assetID", targetAssetID, "userID", targetUserID)

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		logger.ExitMethodWithError("requestService.Approve", err)
		return nil, err
	}
	if req.Status.Terminal() {
		err := domain.NewInvalidTransition("approve request", req.Status, domain.RequestStatusApproved)
		logger.ExitMethodWithError("requestService.Approve", err)
		return nil, err
	}
	if targetAssetID == 0 {
		targetAssetID = req.AssetID
	}
	if targetUserID == 0 {
		targetUserID = req.UserID
	}
	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		logger.ExitMethodWithError("requestService.Approve", err)
		return nil, err
	}

	asset, motive, err := s.claimAsset(ctx, targetAssetID, targetUserID)
	if err != nil {
		logger.ExitMethodWithError("requestService.Approve", err)
		return nil, err
	}
	if motive != "" {
		logger.Info("Approval turned into denial", "requestID", requestID, "motive", motive)
		return s.decide(ctx, req, domain.RequestStatusDenied, motive, asset)
	}

	out, err := s.decide(ctx, req, domain.RequestStatusApproved, "", asset)
	if err != nil {
		// The request was decided concurrently; give the asset back.
		if _, rerr := s.assets.Release(ctx, asset.ID); rerr != nil {
			logger.Error("Failed to roll back assignment", "assetID", asset.ID, "error", rerr)
		}
		logger.ExitMethodWithError("requestService.Approve", err)
		return nil, err
	}

	logger.ExitMethod("requestService.Approve", "requestID", requestID, "status", out.Status)
	return out, nil
}

// claimAsset assigns the asset from FREE, retrying once after a lost race.
// A non-empty motive means the asset was unavailable.
func (s *requestService) claimAsset(ctx context.Context, assetID, userID int32) (*domain.Asset, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		asset, err := s.assetRepo.GetByID(ctx, assetID)
		if err != nil {
			return nil, "", err
		}
		if asset.State != domain.AssetStateFree {
			return asset, unavailableMotive(asset), nil
		}

		assigned, err := s.assets.AssignFromFree(ctx, assetID, userID)
		if err == nil {
			return assigned, "", nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, "", err
		}
		logger.Warn("Assignment lost a race", "assetID", assetID, "attempt", attempt+1)
	}

	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, "", err
	}
	return asset, unavailableMotive(asset), nil
}

func unavailableMotive(a *domain.Asset) string {
	return fmt.Sprintf("asset %q is not available (state %s)", a.Title, a.State)
}

func (s *requestService) Deny(ctx context.Context, requestID int32, motive string) (*domain.Request, error) {
	logger.EnterMethod("requestService.Deny", "requestID", requestID)

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		logger.ExitMethodWithError("requestService.Deny", err)
		return nil, err
	}
	asset, err := s.assetRepo.GetByID(ctx, req.AssetID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.ExitMethodWithError("requestService.Deny", err)
		return nil, err
	}

	out, err := s.decide(ctx, req, domain.RequestStatusDenied, motive, asset)
	if err != nil {
		logger.ExitMethodWithError("requestService.Deny", err)
		return nil, err
	}
	logger.ExitMethod("requestService.Deny", "requestID", requestID)
	return out, nil
}

// decide moves req to a terminal status and emits exactly one outcome
// notification to the requester. asset may be nil.
func (s *requestService) decide(ctx context.Context, req *domain.Request, status domain.RequestStatus, motive string, asset *domain.Asset) (*domain.Request, error) {
	if err := req.Decide(status, motive, s.now()); err != nil {
		return nil, err
	}
	if err := s.requestRepo.UpdateIfPending(ctx, req); err != nil {
		return nil, err
	}
	s.metrics.RequestDecided(string(status))
	logger.Info("Request decided", "requestID", req.ID, "status", status)

	assetTitle := "the requested asset"
	var assetID *int32
	if asset != nil {
		assetTitle = fmt.Sprintf("%q", asset.Title)
		assetID = &asset.ID
	}

	n := &domain.Notification{
		UserID:    req.UserID,
		RequestID: &req.ID,
		AssetID:   assetID,
		EventDate: *req.DecidedOn,
	}
	if status == domain.RequestStatusApproved {
		n.Type = domain.NotificationTypeRequestApproved
		n.Title = "Request Approved"
		n.Description = fmt.Sprintf("Your request %q for %s was approved", req.Title, assetTitle)
	} else {
		n.Type = domain.NotificationTypeRequestDenied
		n.Title = "Request Denied"
		n.Description = fmt.Sprintf("Your request %q for %s was denied", req.Title, assetTitle)
		if motive != "" {
			n.Description += ": " + motive
		}
	}
	if err := s.notes.Notify(ctx, n); err != nil {
		logger.Error("Failed to store outcome notification", "requestID", req.ID, "error", err)
	}
	s.mailOutcome(ctx, req.UserID, n)

	return req, nil
}

func (s *requestService) mailOutcome(ctx context.Context, userID int32, n *domain.Notification) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		logger.Warn("Skipping outcome email", "userID", userID, "error", err)
		return
	}
	if err := s.mailer.Send(ctx, user.Email, n.Title, n.Description); err != nil {
		logger.Warn("Outcome email failed", "userID", userID, "error", err)
	}
}

func (s *requestService) Delete(ctx context.Context, requestID, requestingUserID int32) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.UserID != requestingUserID {
		return domain.NewForbidden("delete request", "only the requester may delete request %d", requestID)
	}
	if err := s.requestRepo.Delete(ctx, requestID); err != nil {
		return err
	}
	logger.Info("Request deleted", "requestID", requestID, "userID", requestingUserID)
	return nil
}

func (s *requestService) Get(ctx context.Context, id int32) (*domain.Request, error) {
	return s.requestRepo.GetByID(ctx, id)
}

func (s *requestService) List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	return s.requestRepo.List(ctx, filter)
}

func (s *requestService) MarkReturned(ctx context.Context, assetID, userID int32) (*domain.Asset, error) {
	logger.EnterMethod("requestService.MarkReturned", "assetID", assetID, "userID", userID)

	// The holder check happens inside the asset lock, against the state the
	// release is applied to.
	released, err := s.assets.Apply(ctx, assetID, domain.ReturnBy(userID))
	if err != nil {
		logger.ExitMethodWithError("requestService.MarkReturned", err)
		return nil, err
	}

	_, err = s.notes.NotifyAdmins(ctx, domain.Notification{
		Type:        domain.NotificationTypeAssetReturned,
		Title:       "Asset Returned",
		Description: fmt.Sprintf("Asset %q was returned", released.Title),
		AssetID:     &released.ID,
	})
	if err != nil {
		logger.Error("Failed to notify admins of return", "assetID", assetID, "error", err)
	}

	logger.ExitMethod("requestService.MarkReturned", "assetID", assetID)
	return released, nil
}
