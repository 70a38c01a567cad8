package http

import (
	"errors"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JWTTokenService struct {
	secretKey []byte
	duration  time.Duration
	logger    ports.LoggerPort
}

func NewJWTTokenService(secretKey string, duration time.Duration, logger ports.LoggerPort) *JWTTokenService {
	return &JWTTokenService{
		secretKey: []byte(secretKey),
		duration:  duration,
		logger:    logger,
	}
}

// IssueToken signs a session token carrying the session id.
func (j *JWTTokenService) IssueToken(payload *domain.TokenPayload) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": payload.SessionID.String(),
		"sub":        payload.Subject,
		"role":       string(payload.Role),
		"iat":        now.Unix(),
		"exp":        now.Add(j.duration).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		j.logger.Error("Failed to sign jwt", map[string]interface{}{
			"error":  err.Error(),
			"method": "IssueToken",
		})
		return "", err
	}
	return token, nil
}

func (j *JWTTokenService) VerifyToken(token string) (*domain.TokenPayload, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		j.logger.Debug("Failed to parse jwt", map[string]interface{}{
			"error":  err.Error(),
			"method": "VerifyToken",
		})
		return nil, err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to verify")
	}

	sidStr, ok := claims["session_id"].(string)
	if !ok {
		return nil, errors.New("invalid session_id claims")
	}
	sid, err := uuid.Parse(sidStr)
	if err != nil {
		return nil, errors.New("invalid parse session_id")
	}

	subject, _ := claims["sub"].(string)

	roleClaimed, ok := claims["role"].(string)
	if !ok {
		return nil, errors.New("invalid role")
	}
	role := domain.UserRole(roleClaimed)
	if role != domain.AdminRole && role != domain.AppUser {
		j.logger.Warn("Invalid role in token", map[string]interface{}{
			"role":   roleClaimed,
			"method": "VerifyToken",
		})
		return nil, errors.New("invalid role value")
	}

	return &domain.TokenPayload{
		SessionID: sid,
		Subject:   subject,
		Role:      role,
	}, nil
}
