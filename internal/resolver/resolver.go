package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/verifier"
)

// Resolution is the outcome of mapping a verified claim onto a durable
// user record. Created reports whether this request provisioned the
// record.
type Resolution struct {
	User    domain.UserIdentity
	Created bool
}

// Resolver maps verified claims onto durable user identities. External
// claims are upserted on every request: profile fields refresh, the
// login counter increments and a log entry is appended. Local claims
// already carry their resolved user and pass through untouched.
type Resolver struct {
	users  repository.UserRepository
	node   *snowflake.Node
	logger *zap.Logger
}

func New(users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *Resolver {
	return &Resolver{users: users, node: node, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, claim *verifier.Claim) (Resolution, error) {
	switch claim.Scheme {
	case verifier.SchemeLocal:
		if claim.User == nil {
			return Resolution{}, errors.New("local claim without user")
		}
		return Resolution{User: *claim.User}, nil
	case verifier.SchemeExternal:
		res, err := r.upsertExternal(ctx, claim)
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent request inserted the same identity between
			// our lookup and create. One retry is enough: the record
			// now exists, so the lookup path wins.
			r.logger.Info("identity insert raced, retrying resolve",
				zap.String("external_id", claim.SubjectID))
			res, err = r.upsertExternal(ctx, claim)
		}
		return res, err
	default:
		return Resolution{}, fmt.Errorf("unknown claim scheme %q", claim.Scheme)
	}
}

func (r *Resolver) upsertExternal(ctx context.Context, claim *verifier.Claim) (Resolution, error) {
	user, err := r.users.GetByExternalID(ctx, claim.SubjectID)
	if errors.Is(err, domain.ErrNotFound) && claim.Email != "" {
		user, err = r.users.GetByEmail(ctx, claim.Email)
	}

	switch {
	case err == nil:
		updated, recErr := r.users.RecordLogin(ctx, user.ID, profileFrom(claim), claim.SubjectID, r.entry(domain.LoginMessageExisting))
		if recErr != nil {
			return Resolution{}, fmt.Errorf("record login: %w", recErr)
		}
		return Resolution{User: updated}, nil

	case errors.Is(err, domain.ErrNotFound):
		created, crErr := r.users.Create(ctx, domain.UserIdentity{
			ID:          uuid.NewString(),
			ExternalID:  claim.SubjectID,
			Email:       claim.Email,
			DisplayName: claim.DisplayName,
			AvatarURL:   claim.AvatarURL,
			Verified:    true,
			LoginCount:  1,
			LoginLog:    []domain.LoginEntry{r.entry(domain.LoginMessageCreated)},
		})
		if crErr != nil {
			return Resolution{}, crErr
		}
		return Resolution{User: created, Created: true}, nil

	default:
		return Resolution{}, fmt.Errorf("lookup identity: %w", err)
	}
}

func (r *Resolver) entry(message string) domain.LoginEntry {
	return domain.LoginEntry{
		ID:      r.node.Generate().Int64(),
		At:      time.Now().UTC(),
		Message: message,
	}
}

func profileFrom(claim *verifier.Claim) domain.ProfileUpdate {
	var p domain.ProfileUpdate
	if claim.Email != "" {
		p.Email = &claim.Email
	}
	if claim.DisplayName != "" {
		p.DisplayName = &claim.DisplayName
	}
	if claim.AvatarURL != "" {
		p.AvatarURL = &claim.AvatarURL
	}
	return p
}
