package repository

import (
	"context"
	"time"

	"github.com/craftlab/canvas-gateway/internal/domain"
)

// UserRepository exposes persistence for gateway user identities.
// Lookup misses return domain.ErrNotFound; unique-index violations
// return domain.ErrConflict.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.UserIdentity, error)
	GetByEmail(ctx context.Context, email string) (domain.UserIdentity, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.UserIdentity, error)
	Create(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error)
	// RecordLogin atomically applies profile updates, backfills the
	// external id, increments the login counter and appends one
	// login-log entry, returning the updated record.
	RecordLogin(ctx context.Context, id string, profile domain.ProfileUpdate, externalID string, entry domain.LoginEntry) (domain.UserIdentity, error)
	UpdateProfile(ctx context.Context, id string, profile domain.ProfileUpdate) (domain.UserIdentity, error)
	MarkVerified(ctx context.Context, id string) error
	SetCredentialHash(ctx context.Context, id, hash string) error
}

// CodeStore keeps short-lived verification codes keyed by purpose and
// email. Codes are single use: a successful Consume removes the code.
type CodeStore interface {
	Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, purpose, email, code string) error
}
