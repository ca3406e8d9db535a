package verifier

import (
	"context"
	"fmt"

	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/token"
)

// LocalStrategy verifies HS256 tokens issued by this gateway. The token
// subject is a durable user id; the user record is loaded so downstream
// handlers see the same shape regardless of scheme.
type LocalStrategy struct {
	tokens *token.Generator
	users  repository.UserRepository
}

func NewLocalStrategy(tokens *token.Generator, users repository.UserRepository) *LocalStrategy {
	return &LocalStrategy{tokens: tokens, users: users}
}

func (s *LocalStrategy) Name() string { return string(SchemeLocal) }

func (s *LocalStrategy) Verify(ctx context.Context, raw string) (*Claim, error) {
	userID, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load token subject: %w", err)
	}
	return &Claim{
		Scheme:    SchemeLocal,
		SubjectID: user.ID,
		Email:     user.Email,
		User:      &user,
	}, nil
}
