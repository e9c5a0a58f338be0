package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newUserServiceForTest(t *testing.T) (*UserServiceImpl, *security.JWTManager, repository.UserRepository) {
	t.Helper()
	db := newServiceDBForTest(t)
	users := repository.NewUserRepository(db)
	jwtMgr := security.NewJWTManager(testJWTSecret, "crowdprice-test", time.Hour)
	return NewUserService(users, jwtMgr, nil), jwtMgr, users
}

func TestSignupValidatesInput(t *testing.T) {
	svc, _, users := newUserServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "not-an-email", Password: "short77", Name: " "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"email", "password", "name"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s to be rejected, got %v", field, verr.Fields)
		}
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ValidationError to match ErrValidation")
	}
	if _, err := users.FindByEmail(ctx, "not-an-email"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected no user row, got %v", err)
	}
}

func TestSignupRejectsSevenCharacterPassword(t *testing.T) {
	svc, _, users := newUserServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "seven@example.com", Password: "1234567", Name: "Seven"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := users.FindByEmail(ctx, "seven@example.com"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected no user row, got %v", err)
	}
}

func TestSignupNormalizesEmailAndHashesPassword(t *testing.T) {
	svc, _, _ := newUserServiceForTest(t)

	user, err := svc.Signup(context.Background(), SignupInput{Email: "  Alice@Example.COM ", Password: "correct-horse", Name: " Alice "})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "alice@example.com" || user.Name != "Alice" {
		t.Fatalf("unexpected normalized user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "correct-horse" {
		t.Fatal("expected password to be stored hashed")
	}
	ok, err := security.VerifyPassword(user.PasswordHash, "correct-horse")
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newUserServiceForTest(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "dup@example.com", Password: "password-1", Name: "Dup"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(ctx, SignupInput{Email: "DUP@example.com", Password: "password-2", Name: "Dup Again"})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestSigninIssuesTokenCarryingUserID(t *testing.T) {
	svc, jwtMgr, _ := newUserServiceForTest(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "bob-password", Name: "Bob"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	res, err := svc.Signin(ctx, SigninInput{Email: "Bob@Example.com", Password: "bob-password"})
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	claims, err := jwtMgr.Parse(res.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected token for user %d, got %d", user.ID, claims.UserID)
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", res.ExpiresAt)
	}
}

func TestSigninWrongPasswordAndUnknownEmailLookTheSame(t *testing.T) {
	svc, _, _ := newUserServiceForTest(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "carol-password", Name: "Carol"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, wrongPassword := svc.Signin(ctx, SigninInput{Email: "carol@example.com", Password: "not-carols-password"})
	_, unknownEmail := svc.Signin(ctx, SigninInput{Email: "nobody@example.com", Password: "whatever-password"})
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownEmail)
	}
}

func TestSigninBacksOffRepeatedFailuresPerAccount(t *testing.T) {
	db := newServiceDBForTest(t)
	jwtMgr := security.NewJWTManager(testJWTSecret, "crowdprice-test", time.Hour)
	guard := NewInMemoryAuthAbuseGuard(AuthAbusePolicy{
		FreeAttempts: 2,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  10 * time.Minute,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }
	svc := NewUserService(repository.NewUserRepository(db), jwtMgr, guard)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "dave@example.com", Password: "dave-password", Name: "Dave"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, err := svc.Signin(ctx, SigninInput{Email: "Dave@Example.com", Password: "wrong-password"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := svc.Signin(ctx, SigninInput{Email: "dave@example.com", Password: "dave-password"})
	var cooldown *SigninCooldownError
	if !errors.As(err, &cooldown) || !errors.Is(err, ErrSigninCooldown) {
		t.Fatalf("expected cooldown after exhausting free attempts, got %v", err)
	}
	if cooldown.RetryAfter != time.Second {
		t.Fatalf("expected 1s cooldown, got %v", cooldown.RetryAfter)
	}
	if _, err := svc.Signin(ctx, SigninInput{Email: "other@example.com", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected other accounts to be unaffected, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := svc.Signin(ctx, SigninInput{Email: "dave@example.com", Password: "dave-password"}); err != nil {
		t.Fatalf("expected signin once cooldown elapsed: %v", err)
	}
	if wait, _ := guard.Check(ctx, "dave@example.com"); wait != 0 {
		t.Fatalf("expected success to reset backoff, got %v", wait)
	}
}

func TestSigninBacksOffUnknownEmails(t *testing.T) {
	db := newServiceDBForTest(t)
	jwtMgr := security.NewJWTManager(testJWTSecret, "crowdprice-test", time.Hour)
	guard := NewInMemoryAuthAbuseGuard(AuthAbusePolicy{BaseDelay: time.Minute, Multiplier: 2, MaxDelay: time.Hour, ResetWindow: time.Hour})
	svc := NewUserService(repository.NewUserRepository(db), jwtMgr, guard)
	ctx := context.Background()

	if _, err := svc.Signin(ctx, SigninInput{Email: "ghost@example.com", Password: "guess-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Signin(ctx, SigninInput{Email: "ghost@example.com", Password: "guess-password"}); !errors.Is(err, ErrSigninCooldown) {
		t.Fatalf("expected unknown email to be throttled like a real one, got %v", err)
	}
}

func TestSigninValidatesInput(t *testing.T) {
	svc, _, _ := newUserServiceForTest(t)
	_, err := svc.Signin(context.Background(), SigninInput{Email: "x", Password: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetByIDReturnsNotFound(t *testing.T) {
	svc, _, _ := newUserServiceForTest(t)
	_, err := svc.GetByID(context.Background(), 404)
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
