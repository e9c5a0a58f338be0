package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
)

const handlerTestSecret = "abcdefghijklmnopqrstuvwxyz123456"

type staticUserLookup struct {
	users map[uint]*domain.User
}

func (s staticUserLookup) GetByID(_ context.Context, id uint) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func newHandlerJWT() *security.JWTManager {
	return security.NewJWTManager(handlerTestSecret, "crowdprice-test", time.Hour)
}

// newTestRouter mounts public routes as-is and protected routes behind the
// auth middleware, resolving user 42.
func newTestRouter(public, protected func(r chi.Router)) (*chi.Mux, *security.JWTManager) {
	jwtMgr := newHandlerJWT()
	lookup := staticUserLookup{users: map[uint]*domain.User{42: {ID: 42, Email: "ada@example.com", Name: "Ada"}}}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		if public != nil {
			public(r)
		}
		if protected != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(jwtMgr, lookup))
				protected(r)
			})
		}
	})
	return r, jwtMgr
}

func bearerFor(t *testing.T, jwtMgr *security.JWTManager, userID uint) string {
	t.Helper()
	tok, _, err := jwtMgr.Sign(userID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}

func doRequest(t *testing.T, h http.Handler, method, target, body, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env testEnvelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v data=%s", err, string(env.Data))
	}
}
