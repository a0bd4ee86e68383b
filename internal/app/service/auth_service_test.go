package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/model"
)

type fakeDenylist struct {
	revoked     map[string]time.Duration
	userCutoffs map[string]time.Time
	err         error
}

func (d *fakeDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	d.revoked[tokenID] = ttl
	return nil
}

func (d *fakeDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := d.revoked[tokenID]
	return ok, nil
}

func (d *fakeDenylist) RevokeUser(_ context.Context, userID string, before time.Time, _ time.Duration) error {
	if d.err != nil {
		return d.err
	}
	d.userCutoffs[userID] = before
	return nil
}

func (d *fakeDenylist) UserRevokedBefore(_ context.Context, userID string) (time.Time, error) {
	return d.userCutoffs[userID], nil
}

func TestRegisterAndLogin(t *testing.T) {
	security.SetSigningKey([]byte("test-secret"), time.Hour)
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, RegisterRequest{Name: " Ada ", Email: " Ada@Example.COM ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Token == "" || resp.User.Role != model.RoleStudent || resp.User.Email != "ada@example.com" {
		t.Fatalf("unexpected response: %+v", resp.User)
	}
	if resp.User.HashedPassword != "" {
		t.Fatalf("password hash must not leave the service")
	}

	if _, err := env.auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "another-pass"}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := env.auth.Login(ctx, LoginRequest{Email: "ADA@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-horse"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := env.auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegister_ValidationAndPhase(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "short"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// 40 runes but 80 bytes, past bcrypt's limit.
	if _, err := env.auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("é", 40)}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for an oversized password, got %v", err)
	}
	if err := env.auth.EnsureAdmin(ctx, "Root", "root@example.com", strings.Repeat("é", 40)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for an oversized admin password, got %v", err)
	}
	env.setPhase(model.PhasePost)
	if _, err := env.auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "long-enough"}); !errors.Is(err, common.ErrPhaseClosed) {
		t.Fatalf("expected phase closed, got %v", err)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	denylist := &fakeDenylist{revoked: map[string]time.Duration{}}
	svc := NewAuthService(fakeUserRepo{newMemStore()}, nil, denylist)

	p := &security.Principal{UserID: "u1", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := svc.Logout(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ttl, ok := denylist.revoked["jti-1"]
	if !ok || ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected revocation: %v %v", ok, ttl)
	}
}

func TestEnsureAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if err := env.auth.EnsureAdmin(ctx, "Root", "Root@Example.com", "super-secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admin, err := fakeUserRepo{env.store}.FindByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Fatalf("unexpected role %s", admin.Role)
	}
	if err := env.auth.EnsureAdmin(ctx, "Root", "root@example.com", "super-secret"); err != nil {
		t.Fatalf("second call should be a no-op: %v", err)
	}

	env.store.addUser("promote", model.RoleStudent)
	if err := env.auth.EnsureAdmin(ctx, "Promote", "promote@example.com", "ignored-pass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.users["promote"].Role != model.RoleAdmin {
		t.Fatalf("existing user should be promoted")
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	env.store.addUser("u1", model.RoleStudent)

	size := "XL"
	user, err := env.auth.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{TshirtSize: &size})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.TshirtSize == nil || *user.TshirtSize != "XL" {
		t.Fatalf("unexpected user: %+v", user)
	}
	bad := "XXXL"
	if _, err := env.auth.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{TshirtSize: &bad}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	blank := "      "
	if _, err := env.auth.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{Name: &blank}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for a blank name, got %v", err)
	}
	padded := "  Grace  "
	user, err = env.auth.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{Name: &padded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Grace" {
		t.Fatalf("unexpected name %q", user.Name)
	}
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("admin", model.RoleAdmin)
	env.store.addUser("u1", model.RoleStudent)
	admin := Actor{UserID: "admin", Role: model.RoleAdmin}

	user, err := env.users.ChangeRole(ctx, admin, "u1", ChangeRoleRequest{Role: model.RoleJudge})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != model.RoleJudge {
		t.Fatalf("unexpected role %s", user.Role)
	}
	if _, err := env.users.ChangeRole(ctx, admin, "admin", ChangeRoleRequest{Role: model.RoleStudent}); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := env.users.ChangeRole(ctx, admin, "u1", ChangeRoleRequest{Role: "owner"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	page, err := env.users.ListUsers(ctx, model.RoleJudge, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 || page.Users[0].ID != "u1" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if _, err := env.users.ListUsers(ctx, "owner", 1, 10); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangeRole_RevokesExistingSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("admin", model.RoleAdmin)
	env.store.addUser("u1", model.RoleAdmin)
	env.store.addUser("u2", model.RoleStudent)
	admin := Actor{UserID: "admin", Role: model.RoleAdmin}

	if _, err := env.users.ChangeRole(ctx, admin, "u1", ChangeRoleRequest{Role: model.RoleStudent}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.denylist.userCutoffs["u1"].IsZero() {
		t.Fatalf("expected u1's tokens to be revoked after demotion")
	}

	if _, err := env.users.ChangeRole(ctx, admin, "u2", ChangeRoleRequest{Role: model.RoleStudent}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := env.denylist.userCutoffs["u2"]; ok {
		t.Fatalf("an unchanged role must not revoke sessions")
	}

	env.denylist.err = errors.New("redis down")
	if _, err := env.users.ChangeRole(ctx, admin, "u2", ChangeRoleRequest{Role: model.RoleJudge}); !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	user, err := env.auth.Me(ctx, "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != model.RoleStudent {
		t.Fatalf("role must not change when sessions cannot be revoked, got %s", user.Role)
	}
}

func TestPage(t *testing.T) {
	cases := []struct{ page, size, limit, offset int }{
		{0, 0, defaultPageSize, 0},
		{2, 10, 10, 10},
		{3, 1000, maxPageSize, 2 * maxPageSize},
		{-1, 5, 5, 0},
	}
	for _, c := range cases {
		limit, offset := Page(c.page, c.size)
		if limit != c.limit || offset != c.offset {
			t.Fatalf("Page(%d, %d) = %d, %d", c.page, c.size, limit, offset)
		}
	}
}
