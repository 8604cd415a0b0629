package provision

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
)

func newService() (*Service, *account.MemoryStore) {
	store := account.NewMemoryStore()
	svc := NewService(store, 0)
	svc.cost = bcrypt.MinCost
	return svc, store
}

func TestHandle_CreatesAthlete(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	res, err := svc.Handle(ctx, Request{Action: "create_user", Email: "Binh@Team.vn", Password: "secret1", FullName: " Bình "})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Profile.Role != account.RoleAthlete || res.Profile.Email != "binh@team.vn" || res.Profile.FullName != "Bình" {
		t.Fatalf("unexpected profile: %+v", res.Profile)
	}
	stored, _ := store.GetByEmail(ctx, "binh@team.vn")
	if stored == nil {
		t.Fatalf("profile not stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}
}

func TestHandle_Failures(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	if _, err := svc.Handle(ctx, Request{Action: "create_user", Email: "a@team.vn", Password: "secret1", FullName: "A"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cases := []struct {
		name string
		req  Request
		msg  string
	}{
		{"action", Request{Action: "delete_user", Email: "b@team.vn", Password: "secret1", FullName: "B"}, `unsupported action "delete_user"`},
		{"email", Request{Action: "create_user", Password: "secret1", FullName: "B"}, "email is required"},
		{"bad email", Request{Action: "create_user", Email: "not-an-email", Password: "secret1", FullName: "B"}, "email address is invalid"},
		{"double at", Request{Action: "create_user", Email: "b@@team.vn", Password: "secret1", FullName: "B"}, "email address is invalid"},
		{"display name", Request{Action: "create_user", Email: "B <b@team.vn>", Password: "secret1", FullName: "B"}, "email address is invalid"},
		{"name", Request{Action: "create_user", Email: "b@team.vn", Password: "secret1"}, "full name is required"},
		{"password", Request{Action: "create_user", Email: "b@team.vn", Password: "123", FullName: "B"}, "password must be at least 6 characters"},
		{"duplicate", Request{Action: "create_user", Email: "A@team.vn", Password: "secret1", FullName: "A2"}, "a user with this email address has already been registered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Handle(ctx, tc.req)
			e := apperr.As(err)
			if e == nil || e.Code != apperr.CodeProvisioningFailed {
				t.Fatalf("got %v", err)
			}
			if e.Message != tc.msg {
				t.Fatalf("message = %q, want %q", e.Message, tc.msg)
			}
		})
	}
}

func TestHandle_StoreFailure(t *testing.T) {
	svc, store := newService()
	store.Fail = errors.New("db down")
	_, err := svc.Handle(context.Background(), Request{Action: "create_user", Email: "c@team.vn", Password: "secret1", FullName: "C"})
	if !apperr.Is(err, apperr.CodeProvisioningFailed) {
		t.Fatalf("got %v", err)
	}
}

func TestEnsureCoach(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	created, err := svc.EnsureCoach(ctx, " Coach@Team.vn ", "secret1", "Head Coach")
	if err != nil || !created {
		t.Fatalf("first EnsureCoach: created=%v err=%v", created, err)
	}
	p, _ := store.GetByEmail(ctx, "coach@team.vn")
	if p == nil || p.Role != account.RoleCoach || p.FullName != "Head Coach" {
		t.Fatalf("unexpected coach: %+v", p)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}

	// A restart with the same config is a no-op, even with a new password.
	created, err = svc.EnsureCoach(ctx, "coach@team.vn", "another1", "Head Coach")
	if err != nil || created {
		t.Fatalf("second EnsureCoach: created=%v err=%v", created, err)
	}
	coaches, _ := store.ListByRole(ctx, account.RoleCoach)
	if len(coaches) != 1 || coaches[0].ID != p.ID {
		t.Fatalf("expected one coach, got %+v", coaches)
	}
}

func TestEnsureCoach_Disabled(t *testing.T) {
	svc, store := newService()
	created, err := svc.EnsureCoach(context.Background(), "", "", "")
	if err != nil || created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	coaches, _ := store.ListByRole(context.Background(), account.RoleCoach)
	if len(coaches) != 0 {
		t.Fatalf("no coach expected, got %d", len(coaches))
	}
}

func TestEnsureCoach_Failures(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	if _, err := svc.Handle(ctx, Request{Action: "create_user", Email: "an@team.vn", Password: "secret1", FullName: "An"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.EnsureCoach(ctx, "an@team.vn", "secret1", "An"); err == nil {
		t.Fatalf("an athlete email must not be promoted to coach")
	}
	if _, err := svc.EnsureCoach(ctx, "coach@team.vn", "123", "C"); err == nil {
		t.Fatalf("short password must be refused")
	}
	if _, err := svc.EnsureCoach(ctx, "not-an-email", "secret1", "C"); err == nil {
		t.Fatalf("invalid email must be refused")
	}

	down, store := newService()
	store.Fail = errors.New("db down")
	if _, err := down.EnsureCoach(ctx, "coach@team.vn", "secret1", "C"); err == nil {
		t.Fatalf("store failure must surface")
	}
}
