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

var signupMessages = map[string]string{
	"Fullname": "full name must be at least 3 characters",
	"Email":    "invalid email format",
	"Password": "password must be at least 6 characters",
	"Phone":    "invalid phone format (use format: 0712345678)",
}

// UserSession is returned by signup and login.
type UserSession struct {
	Token     string      `json:"token"`
	SessionID string      `json:"sessionId"`
	User      domain.User `json:"user"`
}

type UserService struct {
	records  *repository.Records
	ids      *IDAllocator
	hasher   ports.PasswordHasher
	tokens   ports.TokenService
	logger   ports.LoggerPort
	validate *validator.Validate
	now      func() time.Time
}

func NewUserService(
	records *repository.Records,
	ids *IDAllocator,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	logger ports.LoggerPort,
	validate *validator.Validate,
) *UserService {
	return &UserService{
		records:  records,
		ids:      ids,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		validate: validate,
		now:      time.Now,
	}
}

// Signup creates the account and logs it in.
func (s *UserService) Signup(ctx context.Context, req domain.SignupRequest) (*UserSession, error) {
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err, signupMessages)
	}
	if !domain.ValidPhone(req.Phone) {
		return nil, domain.NewValidationError("Phone", signupMessages["Phone"])
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	sessionID := uuid.New()
	var user domain.User
	scope := repository.Scope([]domain.Collection{domain.Users}, domain.SessionKey(domain.CurrentUserKey, sessionID.String()))
	err = s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		users, err := u.Users()
		if err != nil {
			return err
		}
		if findUser(users, req.Email) != -1 {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		user = domain.User{
			ID:        s.ids.NextTimestamp(),
			Fullname:  req.Fullname,
			Email:     req.Email,
			Password:  hash,
			Phone:     req.Phone,
			Rentals:   0,
			CreatedAt: s.now().UTC(),
		}
		if err := u.SetUsers(append(users, user)); err != nil {
			return err
		}
		return u.SetSessionUser(sessionID.String(), user)
	})
	if err != nil {
		s.logger.Warn("Signup failed", map[string]interface{}{
			"error": err.Error(),
			"email": req.Email,
		})
		return nil, err
	}

	s.logger.Info("User signed up", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return s.session(sessionID, user)
}

func (s *UserService) Login(ctx context.Context, creds domain.Credentials) (*UserSession, error) {
	users, err := s.records.Users(ctx)
	if err != nil {
		return nil, err
	}
	idx := findUser(users, strings.TrimSpace(creds.Email))
	if idx == -1 || !s.hasher.Compare(users[idx].Password, creds.Password) {
		s.logger.Warn("Invalid login attempt", map[string]interface{}{
			"email": creds.Email,
		})
		return nil, domain.ErrInvalidCredentials
	}
	user := users[idx]

	sessionID := uuid.New()
	scope := repository.Scope(nil, domain.SessionKey(domain.CurrentUserKey, sessionID.String()))
	err = s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		return u.SetSessionUser(sessionID.String(), user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	s.logger.Info("User logged in", map[string]interface{}{
		"user_id": user.ID,
	})
	return s.session(sessionID, user)
}

func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	scope := repository.Scope(nil, domain.SessionKey(domain.CurrentUserKey, sessionID))
	return s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		u.ClearSessionUser(sessionID)
		return nil
	})
}

// Profile returns the authoritative record of the session user and brings the
// session projection up to date with it.
func (s *UserService) Profile(ctx context.Context, sessionID string) (*domain.User, error) {
	return s.editProfile(ctx, sessionID, func(*domain.User) error { return nil })
}

func (s *UserService) UpdateProfile(ctx context.Context, sessionID, fullname, phone string) (*domain.User, error) {
	fullname = strings.TrimSpace(fullname)
	if fullname == "" {
		return nil, domain.NewValidationError("fullname", "name cannot be empty")
	}
	if !domain.ValidPhone(phone) {
		return nil, domain.NewValidationError("phone", "invalid phone format")
	}
	return s.editProfile(ctx, sessionID, func(u *domain.User) error {
		u.Fullname = fullname
		u.Phone = phone
		return nil
	})
}

// UpdatePhoto stores an image data URL as the profile photo.
func (s *UserService) UpdatePhoto(ctx context.Context, sessionID, dataURL string) (*domain.User, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, domain.NewValidationError("photo", "please upload an image file")
	}
	if len(dataURL) > domain.MaxPhotoBytes {
		return nil, domain.NewValidationError("photo", "file too large (max 5MB)")
	}
	return s.editProfile(ctx, sessionID, func(u *domain.User) error {
		u.ProfilePhoto = &dataURL
		return nil
	})
}

// editProfile applies fn to the authoritative record of the session user and
// rewrites both copies in one unit of work.
func (s *UserService) editProfile(ctx context.Context, sessionID string, fn func(u *domain.User) error) (*domain.User, error) {
	var user domain.User
	scope := repository.Scope([]domain.Collection{domain.Users}, domain.SessionKey(domain.CurrentUserKey, sessionID))
	err := s.records.Update(ctx, scope, func(u *repository.UnitOfWork) error {
		current, err := u.SessionUser(sessionID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotAuthenticated
		}
		users, err := u.Users()
		if err != nil {
			return err
		}
		idx := findUser(users, current.Email)
		if idx == -1 {
			return fmt.Errorf("user %s: %w", current.Email, domain.ErrNotFound)
		}

		if err := fn(&users[idx]); err != nil {
			return err
		}
		user = users[idx]
		if err := u.SetUsers(users); err != nil {
			return err
		}
		return u.SetSessionUser(sessionID, user)
	})
	if err != nil {
		return nil, err
	}
	session := user.Session()
	return &session, nil
}

// ListUsers returns every account without passwords.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.records.Users(ctx)
	if err != nil {
		s.logger.Error("Failed to get users", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	for i := range users {
		users[i] = users[i].Session()
	}
	return users, nil
}

// DeleteUser removes the account and its rentals. Transactions are kept.
func (s *UserService) DeleteUser(ctx context.Context, email string) error {
	removed := 0
	err := s.records.Update(ctx, repository.Scope([]domain.Collection{domain.Users, domain.Rentals}), func(u *repository.UnitOfWork) error {
		users, err := u.Users()
		if err != nil {
			return err
		}
		idx := findUser(users, email)
		if idx == -1 {
			return fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
		}
		if err := u.SetUsers(append(users[:idx], users[idx+1:]...)); err != nil {
			return err
		}

		rentals, err := u.Rentals()
		if err != nil {
			return err
		}
		kept := make([]domain.Rental, 0, len(rentals))
		for _, r := range rentals {
			if r.UserEmail != email {
				kept = append(kept, r)
			}
		}
		removed = len(rentals) - len(kept)
		return u.SetRentals(kept)
	})
	if err != nil {
		s.logger.Error("Failed to delete user", map[string]interface{}{
			"error": err.Error(),
			"email": email,
		})
		return err
	}

	s.logger.Info("User deleted", map[string]interface{}{
		"email":           email,
		"rentals_removed": removed,
	})
	return nil
}

func (s *UserService) session(sessionID uuid.UUID, user domain.User) (*UserSession, error) {
	token, err := s.tokens.IssueToken(&domain.TokenPayload{
		SessionID: sessionID,
		Subject:   user.Email,
		Role:      domain.AppUser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &UserSession{
		Token:     token,
		SessionID: sessionID.String(),
		User:      user.Session(),
	}, nil
}
