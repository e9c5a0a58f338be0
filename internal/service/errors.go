package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrSigninCooldown     = errors.New("too many failed signin attempts")
)

// SigninCooldownError carries how long the account must wait before the
// next signin attempt is evaluated.
type SigninCooldownError struct {
	RetryAfter time.Duration
}

func (e *SigninCooldownError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrSigninCooldown, e.RetryAfter.Round(time.Second))
}

func (e *SigninCooldownError) Unwrap() error { return ErrSigninCooldown }

// ValidationError carries one message per rejected input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// err returns nil when no field was rejected.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, message string) error {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
