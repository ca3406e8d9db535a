package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestProfileNotFound(t *testing.T) {
	svc := NewUserService(repository.NewMemoryUserRepo(), zap.NewNop())
	_, err := svc.Profile(context.Background(), "ghost")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestUpdateProfile(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	ctx := context.Background()
	_, err := repo.Create(ctx, domain.UserIdentity{ID: "u1", Email: "a@example.com", DisplayName: "A"})
	require.NoError(t, err)

	svc := NewUserService(repo, zap.NewNop())
	user, err := svc.UpdateProfile(ctx, "u1", domain.ProfileUpdate{
		DisplayName: strPtr("Alice"),
		AvatarURL:   strPtr("https://img/a.png"),
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", user.DisplayName)
	require.Equal(t, "https://img/a.png", user.AvatarURL)
	require.Equal(t, "a@example.com", user.Email)
}

func TestUpdateProfileEmailTaken(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	ctx := context.Background()
	_, err := repo.Create(ctx, domain.UserIdentity{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.UserIdentity{ID: "u2", Email: "b@example.com"})
	require.NoError(t, err)

	svc := NewUserService(repo, zap.NewNop())
	_, err = svc.UpdateProfile(ctx, "u1", domain.ProfileUpdate{Email: strPtr("B@example.com")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
}

// conflictOnWriteRepo misses the advisory lookup but rejects the write,
// mimicking a concurrent update claiming the email first.
type conflictOnWriteRepo struct {
	*repository.MemoryUserRepo
}

func (r *conflictOnWriteRepo) GetByEmail(context.Context, string) (domain.UserIdentity, error) {
	return domain.UserIdentity{}, domain.ErrNotFound
}

func (r *conflictOnWriteRepo) UpdateProfile(context.Context, string, domain.ProfileUpdate) (domain.UserIdentity, error) {
	return domain.UserIdentity{}, domain.ErrConflict
}

func TestUpdateProfileEmailRaceIsConflict(t *testing.T) {
	mem := repository.NewMemoryUserRepo()
	ctx := context.Background()
	_, err := mem.Create(ctx, domain.UserIdentity{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	svc := NewUserService(&conflictOnWriteRepo{MemoryUserRepo: mem}, zap.NewNop())
	_, err = svc.UpdateProfile(ctx, "u1", domain.ProfileUpdate{Email: strPtr("b@example.com")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestUpdateProfileOwnEmailAllowed(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	ctx := context.Background()
	_, err := repo.Create(ctx, domain.UserIdentity{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	svc := NewUserService(repo, zap.NewNop())
	user, err := svc.UpdateProfile(ctx, "u1", domain.ProfileUpdate{Email: strPtr("A@Example.com")})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", user.Email)
}
