package service

import (
	"context"
	"net/mail"
	"strings"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/repository"
)

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Get(ctx context.Context, id int32) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) Create(ctx context.Context, u *domain.User) error {
	if strings.TrimSpace(u.Name) == "" {
		return domain.NewValidationError("create user", "name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return domain.NewValidationError("create user", "invalid email %q", u.Email)
	}
	if u.Role == "" {
		u.Role = domain.UserRoleUser
	}
	if u.Role != domain.UserRoleUser && u.Role != domain.UserRoleAdmin {
		return domain.NewValidationError("create user", "unknown role %q", u.Role)
	}
	return s.userRepo.Create(ctx, u)
}

func (s *userService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	return s.userRepo.ListByRole(ctx, domain.UserRoleAdmin)
}
