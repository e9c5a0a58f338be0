package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	user, err := h.svc.Signup(r.Context(), service.SignupInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, service.ErrUserAlreadyExists) {
			observability.EmitAudit(r, observability.AuditInput{
				EventName:  "user.signup",
				TargetType: "user",
				Action:     "signup",
				Outcome:    "rejected",
				Reason:     "user_exists",
			})
			response.Error(w, r, http.StatusBadRequest, "CONFLICT", "User already exists", nil)
			return
		}
		slog.ErrorContext(r.Context(), "signup failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to sign up", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.signup",
		ActorUserID: formatID(user.ID),
		TargetType:  "user",
		TargetID:    formatID(user.ID),
		Action:      "signup",
		Outcome:     "success",
		Reason:      "user_created",
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
	})
}

func (h *UserHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	res, err := h.svc.Signin(r.Context(), service.SigninInput{Email: body.Email, Password: body.Password})
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.EmitAudit(r, observability.AuditInput{
				EventName:  "user.signin",
				TargetType: "user",
				Action:     "signin",
				Outcome:    "rejected",
				Reason:     "invalid_credentials",
			})
			response.Error(w, r, http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid credentials", nil)
			return
		}
		var cooldown *service.SigninCooldownError
		if errors.As(err, &cooldown) {
			observability.EmitAudit(r, observability.AuditInput{
				EventName:  "user.signin",
				TargetType: "user",
				Action:     "signin",
				Outcome:    "rejected",
				Reason:     "cooldown",
			})
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(cooldown.RetryAfter.Seconds())))))
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many failed signin attempts", nil)
			return
		}
		slog.ErrorContext(r.Context(), "signin failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to sign in", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.signin",
		ActorUserID: formatID(res.User.ID),
		TargetType:  "user",
		TargetID:    formatID(res.User.ID),
		Action:      "signin",
		Outcome:     "success",
		Reason:      "credentials_verified",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message":   "Signin successful",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
	})
}

// Me returns the user attached by the auth middleware.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.User == nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": id.User})
}
