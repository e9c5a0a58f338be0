package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
)

const minPasswordLength = 8

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Sign(userID uint) (string, time.Time, error)
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

type SigninInput struct {
	Email    string
	Password string
}

type SigninResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type UserServiceImpl struct {
	users  repository.UserRepository
	tokens TokenIssuer
	abuse  AuthAbuseGuard
}

// NewUserService treats a nil abuse guard as noop.
func NewUserService(users repository.UserRepository, tokens TokenIssuer, abuse AuthAbuseGuard) *UserServiceImpl {
	if abuse == nil {
		abuse = NewNoopAuthAbuseGuard()
	}
	return &UserServiceImpl{users: users, tokens: tokens, abuse: abuse}
}

func (s *UserServiceImpl) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthEvent(ctx, "signup", outcome)
		observability.RecordAuthRequestDuration(ctx, "signup", outcome, time.Since(start))
	}()

	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	verr := &ValidationError{}
	if err := validateEmail(email); err != nil {
		verr.add("email", err.Error())
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		verr.add("password", "password must be at least 8 characters")
	}
	if name == "" {
		verr.add("name", "name is required")
	}
	if err := verr.err(); err != nil {
		outcome = "bad_request"
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		outcome = "conflict"
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		outcome = "error"
		return nil, err
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	user := &domain.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserEmailTaken) {
			outcome = "conflict"
			return nil, ErrUserAlreadyExists
		}
		outcome = "error"
		return nil, err
	}
	return user, nil
}

func (s *UserServiceImpl) Signin(ctx context.Context, input SigninInput) (*SigninResult, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthEvent(ctx, "signin", outcome)
		observability.RecordAuthRequestDuration(ctx, "signin", outcome, time.Since(start))
	}()

	email := normalizeEmail(input.Email)
	verr := &ValidationError{}
	if err := validateEmail(email); err != nil {
		verr.add("email", err.Error())
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		verr.add("password", "password must be at least 8 characters")
	}
	if err := verr.err(); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	if wait := s.signinCooldown(ctx, email); wait > 0 {
		outcome = "cooldown"
		return nil, &SigninCooldownError{RetryAfter: wait}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.BurnVerify(input.Password)
			s.registerSigninFailure(ctx, email)
			outcome = "invalid_credentials"
			return nil, ErrInvalidCredentials
		}
		outcome = "error"
		return nil, err
	}
	ok, err := security.VerifyPassword(user.PasswordHash, input.Password)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if !ok {
		s.registerSigninFailure(ctx, email)
		outcome = "invalid_credentials"
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Sign(user.ID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if err := s.abuse.Reset(ctx, email); err != nil {
		observability.RecordAuthAbuseGuardEvent(ctx, s.abuse.Backend(), "reset", "error")
		slog.WarnContext(ctx, "signin abuse guard reset failed", "error", err)
	} else {
		observability.RecordAuthAbuseGuardEvent(ctx, s.abuse.Backend(), "reset", "ok")
	}
	return &SigninResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// signinCooldown fails open: a broken guard backend must not lock everyone out.
func (s *UserServiceImpl) signinCooldown(ctx context.Context, email string) time.Duration {
	backend := s.abuse.Backend()
	wait, err := s.abuse.Check(ctx, email)
	switch {
	case err != nil:
		observability.RecordAuthAbuseGuardEvent(ctx, backend, "check", "error")
		slog.WarnContext(ctx, "signin abuse guard check failed", "error", err)
		return 0
	case wait > 0:
		observability.RecordAuthAbuseGuardEvent(ctx, backend, "check", "blocked")
		return wait
	default:
		observability.RecordAuthAbuseGuardEvent(ctx, backend, "check", "ok")
		return 0
	}
}

func (s *UserServiceImpl) registerSigninFailure(ctx context.Context, email string) {
	backend := s.abuse.Backend()
	delay, err := s.abuse.RegisterFailure(ctx, email)
	if err != nil {
		observability.RecordAuthAbuseGuardEvent(ctx, backend, "register_failure", "error")
		slog.WarnContext(ctx, "signin abuse guard update failed", "error", err)
		return
	}
	observability.RecordAuthAbuseGuardEvent(ctx, backend, "register_failure", "ok")
	observability.RecordAuthAbuseCooldown(ctx, backend, "register_failure", delay)
}

func (s *UserServiceImpl) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return errors.New("invalid email")
	}
	return nil
}
