package driving

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// AuthService validates bearer tokens issued by the platform's auth service
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for the given identity (service accounts, tests)
	IssueToken(ctx context.Context, authCtx *domain.AuthContext) (string, error)
}
