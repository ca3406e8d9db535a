package verifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/domain"
)

// Scheme identifies which strategy produced a claim.
type Scheme string

const (
	SchemeLocal    Scheme = "local"
	SchemeExternal Scheme = "external"
)

// Claim is the normalized result of verifying a bearer credential. For
// local tokens User carries the already-resolved identity; for external
// credentials only the provider facts are populated.
type Claim struct {
	Scheme      Scheme
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
	User        *domain.UserIdentity
}

// Strategy verifies one flavor of bearer credential.
type Strategy interface {
	Name() string
	Verify(ctx context.Context, raw string) (*Claim, error)
}

// Chain tries each strategy in order and returns the first claim that
// verifies. Local tokens are tried before external credentials so a
// locally-issued token is never round-tripped to an identity provider.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

func (c *Chain) Verify(ctx context.Context, raw string) (*Claim, error) {
	if raw == "" {
		return nil, domain.ErrMissingCredential
	}
	for _, s := range c.strategies {
		claim, err := s.Verify(ctx, raw)
		if err == nil {
			return claim, nil
		}
		c.logger.Debug("credential rejected by strategy",
			zap.String("strategy", s.Name()),
			zap.Error(err),
		)
	}
	return nil, domain.ErrInvalidCredential
}
