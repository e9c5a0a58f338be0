package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/health"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/handler"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
	servicegomock "github.com/sandeepkv93/crowdprice-backend/internal/service/gomock"
)

type routerTestMocks struct {
	users    *servicegomock.MockUserService
	products *servicegomock.MockProductService
	prices   *servicegomock.MockPriceService
	posts    *servicegomock.MockPostService
	jwt      *security.JWTManager
}

type staticChecker struct{ res health.CheckResult }

func (c staticChecker) Check(context.Context) health.CheckResult { return c.res }

func newRouterForTest(t *testing.T, mutate func(*Dependencies)) (http.Handler, routerTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := routerTestMocks{
		users:    servicegomock.NewMockUserService(ctrl),
		products: servicegomock.NewMockProductService(ctrl),
		prices:   servicegomock.NewMockPriceService(ctrl),
		posts:    servicegomock.NewMockPostService(ctrl),
		jwt:      security.NewJWTManager("abcdefghijklmnopqrstuvwxyz123456", "crowdprice-test", time.Hour),
	}
	dep := Dependencies{
		UserHandler:      handler.NewUserHandler(m.users),
		ProductHandler:   handler.NewProductHandler(m.products, 1<<20),
		PriceHandler:     handler.NewPriceHandler(m.prices),
		PostHandler:      handler.NewPostHandler(m.posts),
		Tokens:           m.jwt,
		Users:            m.users,
		CORSOrigins:      []string{"http://localhost:3000"},
		AuthRateLimitRPM: 100,
		APIRateLimitRPM:  100,
	}
	if mutate != nil {
		mutate(&dep)
	}
	return NewRouter(dep), m
}

func serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoints(t *testing.T) {
	h, _ := newRouterForTest(t, func(dep *Dependencies) {
		dep.Readiness = health.NewProbeRunner(100*time.Millisecond, 0,
			staticChecker{res: health.CheckResult{Name: "db", Healthy: true}},
			staticChecker{res: health.CheckResult{Name: "redis", Healthy: false, Error: "down"}},
		)
	})

	if rr := serve(h, http.MethodGet, "/health/live", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", rr.Code)
	}
	rr := serve(h, http.MethodGet, "/health/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "DEPENDENCY_UNREADY") {
		t.Fatalf("expected ready 503, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	h, m := newRouterForTest(t, nil)

	m.products.EXPECT().ListPaged(gomock.Any(), gomock.Any()).Return(repository.PageResult[domain.Product]{Page: 1, PageSize: 20}, nil)
	if rr := serve(h, http.MethodGet, "/api/v1/product", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected product list 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	m.prices.EXPECT().Rankings(gomock.Any(), 0).Return(&service.Rankings{MostOverpriced: []service.RankedProduct{}, WorthIt: []service.RankedProduct{}}, nil)
	if rr := serve(h, http.MethodGet, "/api/v1/product/rankings", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected rankings 200, got %d", rr.Code)
	}

	for _, route := range []string{
		"/api/v1/product/addproduct",
		"/api/v1/product/1/requestprice",
		"/api/v1/product/1/addpost",
		"/api/v1/product/1/image",
		"/api/v1/post/1/like",
		"/api/v1/post/1/dislike",
	} {
		rr := serve(h, http.MethodPost, route, `{}`, map[string]string{"Content-Type": "application/json"})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", route, rr.Code)
		}
	}

	tok, _, err := m.jwt.Sign(42)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	m.users.EXPECT().GetByID(gomock.Any(), uint(42)).Return(&domain.User{ID: 42, Name: "Ada"}, nil)
	m.posts.EXPECT().React(gomock.Any(), uint(1), uint(42), domain.ReactionLike).Return(&domain.Post{ID: 1, Likes: 1}, nil)
	rr := serve(h, http.MethodPost, "/api/v1/post/1/like", "", map[string]string{"Authorization": "Bearer " + tok})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected like 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" && !strings.Contains(rr.Body.String(), "request_id") {
		t.Fatal("expected request id on response")
	}
}

func TestRouterAuthRateLimit(t *testing.T) {
	h, m := newRouterForTest(t, func(dep *Dependencies) { dep.AuthRateLimitRPM = 1 })

	m.users.EXPECT().Signin(gomock.Any(), gomock.Any()).Return(nil, service.ErrInvalidCredentials)
	body := `{"email":"ada@example.com","password":"password123"}`
	if rr := serve(h, http.MethodPost, "/api/v1/user/signin", body, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected first signin 400, got %d", rr.Code)
	}
	rr := serve(h, http.MethodPost, "/api/v1/user/signin", body, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	h, _ := newRouterForTest(t, nil)
	rr := serve(h, http.MethodOptions, "/api/v1/product/addproduct", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
