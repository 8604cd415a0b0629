// Package provision creates athlete accounts on behalf of a coach.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
	"mealcheck/internal/retry"
)

const (
	ActionCreateUser = "create_user"
	minPassword      = 6
)

// Request is the privileged function payload.
type Request struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Result carries the created profile.
type Result struct {
	Profile account.Profile `json:"profile"`
}

type Service struct {
	store   account.Store
	timeout time.Duration
	cost    int
	now     func() time.Time
}

func NewService(store account.Store, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout, cost: bcrypt.DefaultCost, now: time.Now}
}

// Handle runs one provisioning action. Every failure is PROVISIONING_FAILED
// carrying a message fit to show the coach as is.
func (s *Service) Handle(ctx context.Context, req Request) (Result, error) {
	if req.Action != ActionCreateUser {
		return Result{}, apperr.Provisioning("unsupported action " + quote(req.Action))
	}
	email := account.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.FullName)
	switch {
	case email == "":
		return Result{}, apperr.Provisioning("email is required")
	case name == "":
		return Result{}, apperr.Provisioning("full name is required")
	case len(req.Password) < minPassword:
		return Result{}, apperr.Provisioning("password must be at least 6 characters")
	}
	if !validEmail(email) {
		return Result{}, apperr.Provisioning("email address is invalid")
	}

	p, err := s.newProfile(email, name, req.Password, account.RoleAthlete)
	if err != nil {
		return Result{}, apperr.Provisioning(err.Error())
	}
	err = retry.Once(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.Create(ctx, p)
	})
	switch {
	case errors.Is(err, account.ErrEmailTaken):
		return Result{}, apperr.Provisioning("a user with this email address has already been registered")
	case err != nil:
		return Result{}, &apperr.Error{Code: apperr.CodeProvisioningFailed, Message: "could not create user", Err: err}
	}
	return Result{Profile: p}, nil
}

// EnsureCoach creates the coach account named by deployment config when it
// does not exist yet. It reports whether a profile was created. An empty
// email disables it.
func (s *Service) EnsureCoach(ctx context.Context, email, password, name string) (bool, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Coach"
	}
	if !validEmail(email) {
		return false, fmt.Errorf("coach email %q is invalid", email)
	}

	var existing *account.Profile
	err := retry.Once(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		existing, err = s.store.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("look up coach: %w", err)
	}
	if existing != nil {
		if existing.Role != account.RoleCoach {
			return false, fmt.Errorf("%s is registered as %s, not coach", email, existing.Role)
		}
		return false, nil
	}
	if len(password) < minPassword {
		return false, fmt.Errorf("coach password must be at least %d characters", minPassword)
	}

	p, err := s.newProfile(email, name, password, account.RoleCoach)
	if err != nil {
		return false, err
	}
	err = retry.Once(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.Create(ctx, p)
	})
	switch {
	case errors.Is(err, account.ErrEmailTaken):
		// Another instance created it first.
		return false, nil
	case err != nil:
		return false, fmt.Errorf("create coach: %w", err)
	}
	return true, nil
}

func (s *Service) newProfile(email, name, password string, role account.Role) (account.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return account.Profile{}, err
	}
	return account.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     name,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}, nil
}

// validEmail uses the validator engine gin binds requests with.
func validEmail(email string) bool {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		v = fallback
	}
	return v.Var(email, "required,email") == nil
}

var fallback = validator.New()

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}
