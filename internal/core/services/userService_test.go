package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
)

func TestSignup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	sess, err := h.users.Signup(ctx, domain.SignupRequest{
		Fullname: "Jane Rider",
		Email:    "jane@uni.ac.ke",
		Password: "secret1",
		Phone:    "+254 712 345 678",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Token == "" || sess.SessionID == "" {
		t.Errorf("session = %+v", sess)
	}
	if sess.User.Password != "" || sess.User.Rentals != 0 {
		t.Errorf("user = %+v", sess.User)
	}

	stored := h.user(t, "jane@uni.ac.ke")
	if stored.Password == "secret1" || stored.Password == "" {
		t.Errorf("password stored as %q", stored.Password)
	}
	projection, _ := h.records.SessionUser(ctx, sess.SessionID)
	if projection == nil || projection.Email != "jane@uni.ac.ke" {
		t.Errorf("projection = %+v", projection)
	}

	_, err = h.users.Signup(ctx, domain.SignupRequest{Fullname: "Jane Again", Email: "jane@uni.ac.ke", Password: "secret2", Phone: "0712345678"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate email: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t)
	valid := domain.SignupRequest{Fullname: "Jane", Email: "j@x.io", Password: "secret1", Phone: "0712345678"}

	tests := []struct {
		name   string
		mutate func(r *domain.SignupRequest)
		reason string
	}{
		{"short name", func(r *domain.SignupRequest) { r.Fullname = "Jo" }, "full name"},
		{"bad email", func(r *domain.SignupRequest) { r.Email = "nope" }, "email"},
		{"short password", func(r *domain.SignupRequest) { r.Password = "12345" }, "password"},
		{"bad phone", func(r *domain.SignupRequest) { r.Phone = "12345" }, "phone"},
		{"phone starting with zero digit", func(r *domain.SignupRequest) { r.Phone = "0012345678" }, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := h.users.Signup(context.Background(), req)
			if !domain.IsValidation(err) || !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("expected validation error about %s, got %v", tt.reason, err)
			}
		})
	}
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "a@b.com")

	if _, err := h.users.Login(ctx, domain.Credentials{Email: "a@b.com", Password: "wrong!"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := h.users.Login(ctx, domain.Credentials{Email: "x@b.com", Password: "secret1"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", err)
	}

	sess, err := h.users.Login(ctx, domain.Credentials{Email: "a@b.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.users.Profile(ctx, sess.SessionID); err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if err := h.users.Logout(ctx, sess.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.users.Profile(ctx, sess.SessionID); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("profile after logout: %v", err)
	}
	if _, err := h.rentals.Rent(ctx, sess.SessionID, rentRequest(1, 1, "1234")); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("rent after logout: %v", err)
	}
}

func TestUpdateProfileSyncsProjection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	updated, err := h.users.UpdateProfile(ctx, sid, "  New Name ", "0798765432")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Fullname != "New Name" || updated.Phone != "0798765432" {
		t.Errorf("updated = %+v", updated)
	}
	if stored := h.user(t, "a@b.com"); stored.Fullname != "New Name" {
		t.Errorf("authoritative = %+v", stored)
	}
	projection, _ := h.records.SessionUser(ctx, sid)
	if projection.Fullname != "New Name" || projection.Phone != "0798765432" {
		t.Errorf("projection = %+v", projection)
	}

	if _, err := h.users.UpdateProfile(ctx, sid, " ", "0798765432"); !domain.IsValidation(err) {
		t.Errorf("empty name: %v", err)
	}
	if _, err := h.users.UpdateProfile(ctx, sid, "Name", "123"); !domain.IsValidation(err) {
		t.Errorf("bad phone: %v", err)
	}
	if _, err := h.users.UpdateProfile(ctx, "nobody", "Name", "0798765432"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("no session: %v", err)
	}
}

func TestUpdatePhoto(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sid := h.signup(t, "a@b.com")

	photo := "data:image/png;base64,iVBORw0KGgo="
	user, err := h.users.UpdatePhoto(ctx, sid, photo)
	if err != nil {
		t.Fatal(err)
	}
	if user.ProfilePhoto == nil || *user.ProfilePhoto != photo {
		t.Errorf("photo = %v", user.ProfilePhoto)
	}
	if stored := h.user(t, "a@b.com"); stored.ProfilePhoto == nil {
		t.Error("photo not stored on the account")
	}

	if _, err := h.users.UpdatePhoto(ctx, sid, "data:text/plain;base64,aGk="); !domain.IsValidation(err) {
		t.Errorf("non image: %v", err)
	}
	huge := "data:image/png;base64," + strings.Repeat("A", domain.MaxPhotoBytes)
	if _, err := h.users.UpdatePhoto(ctx, sid, huge); !domain.IsValidation(err) {
		t.Errorf("huge photo: %v", err)
	}
}

func TestListUsersHidesPasswords(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "a@b.com")
	users, err := h.users.ListUsers(context.Background())
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers = %+v, %v", users, err)
	}
	if users[0].Password != "" {
		t.Error("password exposed")
	}
}

func TestAdminRegisterLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	admin, err := h.admins.Register(ctx, domain.Credentials{Email: "root@webike.io", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	if admin.Password != "" {
		t.Error("password returned")
	}
	if _, err := h.admins.Register(ctx, domain.Credentials{Email: "root@webike.io", Password: "hunter22"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate admin: %v", err)
	}
	if _, err := h.admins.Register(ctx, domain.Credentials{Email: "bad", Password: "hunter22"}); !domain.IsValidation(err) {
		t.Errorf("bad email: %v", err)
	}
	if _, err := h.admins.Register(ctx, domain.Credentials{Email: "ok@webike.io", Password: "123"}); !domain.IsValidation(err) {
		t.Errorf("short password: %v", err)
	}

	if _, err := h.admins.Login(ctx, domain.Credentials{Email: "root@webike.io", Password: "nope"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("bad login: %v", err)
	}
	sess, err := h.admins.Login(ctx, domain.Credentials{Email: "root@webike.io", Password: "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	payload, err := stubTokens{}.VerifyToken(sess.Token)
	if err != nil || payload.Role != domain.AdminRole {
		t.Errorf("token payload = %+v, %v", payload, err)
	}
	if current, err := h.admins.Current(ctx, sess.SessionID); err != nil || current.Email != "root@webike.io" {
		t.Errorf("Current = %+v, %v", current, err)
	}

	if err := h.admins.Logout(ctx, sess.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.admins.Current(ctx, sess.SessionID); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("after logout: %v", err)
	}
}
