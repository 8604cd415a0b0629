package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
	"mealcheck/internal/retry"
)

type fixture struct {
	svc   *Service
	store *account.MemoryStore
	deny  *MemoryDenylist
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: account.NewMemoryStore(),
		deny:  NewMemoryDenylist(),
		now:   time.Date(2026, 10, 19, 5, 0, 0, 0, time.UTC),
	}
	f.deny.now = func() time.Time { return f.now }
	tokens := Tokens{Key: []byte("test-key"), Issuer: "mealcheck", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour}
	f.svc = NewService(f.store, f.deny, tokens, retry.Policy{})
	f.svc.now = func() time.Time { return f.now }

	for _, p := range []account.Profile{
		{ID: "coach-1", Email: "coach@team.vn", FullName: "Coach", Role: account.RoleCoach},
		{ID: "ath-1", Email: "an@team.vn", FullName: "An", Role: account.RoleAthlete},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte("pw-"+p.ID), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		p.PasswordHash = string(hash)
		if err := f.store.Create(context.Background(), p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	return f
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.SignIn(ctx, " An@Team.vn ", "pw-ath-1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.Profile.ID != "ath-1" || sess.Profile.Role != account.RoleAthlete {
		t.Fatalf("unexpected profile: %+v", sess.Profile)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("tokens missing")
	}

	if _, err := f.svc.SignIn(ctx, "an@team.vn", "wrong"); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := f.svc.SignIn(ctx, "ghost@team.vn", "pw"); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestSignIn_StoreDownIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.Fail = errors.New("connection refused")
	_, err := f.svc.SignIn(context.Background(), "an@team.vn", "pw-ath-1")
	if !apperr.Is(err, apperr.CodeUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestAuthenticate_RoleFromRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.SignIn(ctx, "coach@team.vn", "pw-coach-1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	p, claims, err := f.svc.Authenticate(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Role != account.RoleCoach || claims.Subject != "coach-1" {
		t.Fatalf("got %+v %+v", p, claims)
	}

	if _, _, err := f.svc.Authenticate(ctx, sess.RefreshToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}

	f.now = f.now.Add(16 * time.Minute)
	if _, _, err := f.svc.Authenticate(ctx, sess.AccessToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestAuthenticate_ForeignKey(t *testing.T) {
	f := newFixture(t)
	other := Tokens{Key: []byte("other"), Issuer: "mealcheck", AccessTTL: time.Minute, RefreshTTL: time.Hour}
	pair, err := other.Issue("coach-1", f.now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := f.svc.Authenticate(context.Background(), pair.AccessToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("got %v", err)
	}
}

func TestRefresh_RotatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.SignIn(ctx, "an@team.vn", "pw-ath-1")

	next, err := f.svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}
	if _, err := f.svc.Refresh(ctx, sess.RefreshToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("reused refresh token: got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.SignIn(ctx, "an@team.vn", "pw-ath-1")
	_, claims, err := f.svc.Authenticate(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := f.svc.SignOut(ctx, claims, sess.RefreshToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, _, err := f.svc.Authenticate(ctx, sess.AccessToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("revoked access token accepted: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, sess.RefreshToken); !apperr.Is(err, apperr.CodeAuthFailed) {
		t.Fatalf("revoked refresh token accepted: %v", err)
	}
}

func TestMemoryDenylist_Expires(t *testing.T) {
	d := NewMemoryDenylist()
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()
	_ = d.Deny(ctx, "jti", time.Minute)
	if ok, _ := d.Denied(ctx, "jti"); !ok {
		t.Fatalf("expected denied")
	}
	now = now.Add(time.Minute)
	if ok, _ := d.Denied(ctx, "jti"); ok {
		t.Fatalf("expected entry to lapse")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	ctx := context.Background()

	r := gin.New()
	coach := r.Group("/coach", RequireAuth(f.svc), RequireRole(account.RoleCoach))
	coach.GET("/ping", func(c *gin.Context) {
		p, _ := CurrentProfile(c)
		c.String(http.StatusOK, p.ID)
	})

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/coach/ping", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", w.Code)
	}

	athlete, _ := f.svc.SignIn(ctx, "an@team.vn", "pw-ath-1")
	w := do(athlete.AccessToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("athlete: status %d", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "FORBIDDEN" {
		t.Fatalf("code = %q", body.Error.Code)
	}

	coachSess, _ := f.svc.SignIn(ctx, "coach@team.vn", "pw-coach-1")
	if w := do(coachSess.AccessToken); w.Code != http.StatusOK || w.Body.String() != "coach-1" {
		t.Fatalf("coach: status %d body %q", w.Code, w.Body.String())
	}
}
