package driven

import "github.com/scriptroom/feedback-core/internal/core/domain"

// AuthAdapter handles bearer token cryptography.
// User credentials live in the external auth service; this only signs and
// verifies tokens and hashes service keys.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)

	// HashSecret hashes a service key for configuration
	HashSecret(secret string) (string, error)

	// VerifySecret checks a presented service key against a stored hash
	VerifySecret(secret, hash string) bool
}
