package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
	"github.com/scriptroom/feedback-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	serviceKeys []domain.ServiceKey
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewAuthService creates a new AuthService. Service keys, if any, are
// accepted as bearer values alongside JWTs.
func NewAuthService(authAdapter driven.AuthAdapter, serviceKeys ...domain.ServiceKey) driving.AuthService {
	return &authService{
		authAdapter: authAdapter,
		serviceKeys: serviceKeys,
		tokenTTL:    24 * time.Hour,
		now:         time.Now,
	}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	if strings.HasPrefix(token, domain.ServiceKeyPrefix) {
		return s.validateServiceKey(token)
	}

	// Parse and validate JWT
	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	// Check expiration
	if s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}

// validateServiceKey matches a static key against the configured hashes
func (s *authService) validateServiceKey(token string) (*domain.AuthContext, error) {
	for _, key := range s.serviceKeys {
		if s.authAdapter.VerifySecret(token, key.Hash) {
			return &domain.AuthContext{
				UserID: key.ServiceUserID(),
				Name:   key.Name,
				Role:   domain.RoleMember,
			}, nil
		}
	}
	return nil, domain.ErrTokenInvalid
}

// IssueToken signs a token for the given identity
func (s *authService) IssueToken(ctx context.Context, authCtx *domain.AuthContext) (string, error) {
	if authCtx == nil || authCtx.UserID == "" {
		return "", domain.ErrInvalidInput
	}
	now := s.now()
	return s.authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    authCtx.UserID,
		Email:     authCtx.Email,
		Name:      authCtx.Name,
		Role:      authCtx.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	})
}

// Helper functions

func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
