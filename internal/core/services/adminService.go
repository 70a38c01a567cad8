package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var adminMessages = map[string]string{
	"Email":    "invalid email format",
	"Password": "password must be at least 6 characters",
}

type AdminSession struct {
	Token     string       `json:"token"`
	SessionID string       `json:"sessionId"`
	Admin     domain.Admin `json:"admin"`
}

type AdminService struct {
	records  *repository.Records
	ids      *IDAllocator
	hasher   ports.PasswordHasher
	tokens   ports.TokenService
	logger   ports.LoggerPort
	validate *validator.Validate
	now      func() time.Time
}

func NewAdminService(
	records *repository.Records,
	ids *IDAllocator,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	logger ports.LoggerPort,
	validate *validator.Validate,
) *AdminService {
	return &AdminService{
		records:  records,
		ids:      ids,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		validate: validate,
		now:      time.Now,
	}
}

func (s *AdminService) Register(ctx context.Context, creds domain.Credentials) (*domain.Admin, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := s.validate.Struct(creds); err != nil {
		return nil, validationError(err, adminMessages)
	}
	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var admin domain.Admin
	err = s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Admins}), func(u *repository.UnitOfWork) error {
		admins, err := u.Admins()
		if err != nil {
			return err
		}
		if findAdmin(admins, creds.Email) != -1 {
			return fmt.Errorf("admin already exists: %w", domain.ErrConflict)
		}
		admin = domain.Admin{
			ID:        s.ids.NextTimestamp(),
			Email:     creds.Email,
			Password:  hash,
			CreatedAt: s.now().UTC(),
		}
		return u.SetAdmins(append(admins, admin))
	})
	if err != nil {
		s.logger.Warn("Admin registration failed", map[string]interface{}{
			"error": err.Error(),
			"email": creds.Email,
		})
		return nil, err
	}

	s.logger.Info("Admin registered", map[string]interface{}{
		"admin_id": admin.ID,
	})
	registered := admin.Session()
	return &registered, nil
}

func (s *AdminService) Login(ctx context.Context, creds domain.Credentials) (*AdminSession, error) {
	admins, err := s.records.Admins(ctx)
	if err != nil {
		return nil, err
	}
	idx := findAdmin(admins, strings.TrimSpace(creds.Email))
	if idx == -1 || !s.hasher.Compare(admins[idx].Password, creds.Password) {
		s.logger.Warn("Invalid admin login attempt", map[string]interface{}{
			"email": creds.Email,
		})
		return nil, fmt.Errorf("invalid admin credentials: %w", domain.ErrInvalidCredentials)
	}
	admin := admins[idx]

	sessionID := uuid.New()
	scope := repository.Scope(nil, domain.SessionKey(domain.CurrentAdminKey, sessionID.String()))
	err = s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		return u.SetSessionAdmin(sessionID.String(), admin)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open admin session: %w", err)
	}

	token, err := s.tokens.IssueToken(&domain.TokenPayload{
		SessionID: sessionID,
		Subject:   admin.Email,
		Role:      domain.AdminRole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("Admin logged in", map[string]interface{}{
		"admin_id": admin.ID,
	})
	return &AdminSession{
		Token:     token,
		SessionID: sessionID.String(),
		Admin:     admin.Session(),
	}, nil
}

func (s *AdminService) Logout(ctx context.Context, sessionID string) error {
	scope := repository.Scope(nil, domain.SessionKey(domain.CurrentAdminKey, sessionID))
	return s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		u.ClearSessionAdmin(sessionID)
		return nil
	})
}

// Current returns the admin of an open session or ErrNotAuthenticated.
func (s *AdminService) Current(ctx context.Context, sessionID string) (*domain.Admin, error) {
	admin, err := s.records.SessionAdmin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return admin, nil
}

func findAdmin(admins []domain.Admin, email string) int {
	for i := range admins {
		if admins[i].Email == email {
			return i
		}
	}
	return -1
}
