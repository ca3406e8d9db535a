package service

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/repository"
)

// UserService serves profile reads and edits for authenticated users.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
	tracer trace.Tracer
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
		tracer: otel.Tracer("github.com/craftlab/canvas-gateway/internal/service"),
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.UserIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Profile")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UserIdentity{}, newAPIError(http.StatusNotFound, "User not found")
		}
		span.RecordError(err)
		return domain.UserIdentity{}, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (domain.UserIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateProfile")
	defer span.End()

	if update.Email != nil {
		normalized := normalizeEmail(*update.Email)
		if normalized == "" {
			return domain.UserIdentity{}, newAPIError(http.StatusBadRequest, "email cannot be empty")
		}
		if existing, err := s.users.GetByEmail(ctx, normalized); err == nil && existing.ID != userID {
			return domain.UserIdentity{}, newAPIError(http.StatusConflict, "Email already registered")
		}
		update.Email = &normalized
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UserIdentity{}, newAPIError(http.StatusNotFound, "User not found")
		}
		// The pre-check above is advisory; the unique email index is
		// the real arbiter when two updates race.
		if errors.Is(err, domain.ErrConflict) {
			return domain.UserIdentity{}, newAPIError(http.StatusConflict, "Email already registered")
		}
		span.RecordError(err)
		return domain.UserIdentity{}, err
	}

	s.logger.Info("profile updated", zap.String("user_id", userID))
	return user, nil
}
