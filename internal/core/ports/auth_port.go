package ports

import "github.com/sm8ta/webike_rental_nikita/internal/core/domain"

type TokenService interface {
	IssueToken(payload *domain.TokenPayload) (string, error)
	VerifyToken(token string) (*domain.TokenPayload, error)
}

// PasswordHasher obscures stored passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}
