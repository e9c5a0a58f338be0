package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/crowdprice-backend/internal/database"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/handler"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/router"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

type testServerOptions struct {
	images           service.ProductImageStorage
	redisClient      redis.UniversalClient
	reactionDedup    bool
	authRateLimitRPM int
	abuseGuard       service.AuthAbuseGuard
	seed             bool
}

type testServer struct {
	baseURL string
	client  *http.Client
	db      *gorm.DB
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func newTestServer(t *testing.T, opts testServerOptions) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if opts.seed {
		if _, err := database.Seed(db); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	jwtMgr := security.NewJWTManager("abcdefghijklmnopqrstuvwxyz123456", "crowdprice-it", time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	requestRepo := repository.NewProductRequestRepository(db)
	postRepo := repository.NewPostRepository(db)

	var cache service.PriceCacheStore = service.NewInMemoryPriceCacheStore()
	if opts.redisClient != nil {
		cache = service.NewRedisPriceCacheStore(opts.redisClient, "it:price")
	}

	userSvc := service.NewUserService(userRepo, jwtMgr, opts.abuseGuard)
	productSvc := service.NewProductService(productRepo, opts.images, log)
	priceSvc := service.NewPriceService(productRepo, requestRepo, cache, opts.images, service.PriceServiceConfig{CacheTTL: time.Minute}, log)
	postSvc := service.NewPostService(postRepo, productRepo, opts.reactionDedup)

	authRPM := opts.authRateLimitRPM
	if authRPM == 0 {
		authRPM = 1000
	}
	dep := router.Dependencies{
		UserHandler:      handler.NewUserHandler(userSvc),
		ProductHandler:   handler.NewProductHandler(productSvc, 1<<20),
		PriceHandler:     handler.NewPriceHandler(priceSvc),
		PostHandler:      handler.NewPostHandler(postSvc),
		Tokens:           jwtMgr,
		Users:            userSvc,
		CORSOrigins:      []string{"http://localhost:3000"},
		AuthRateLimitRPM: authRPM,
		APIRateLimitRPM:  10000,
		MaxImageBytes:    1 << 20,
	}
	if opts.redisClient != nil {
		dep.AuthRateLimiter = middleware.NewDistributedRateLimiter(
			middleware.NewRedisFixedWindowLimiter(opts.redisClient, "it:rl"),
			authRPM,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}

	srv := httptest.NewServer(router.NewRouter(dep))
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testServer{baseURL: srv.URL, client: srv.Client(), db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeEnvelope(t, resp.Body)
}

func decodeEnvelope(t *testing.T, r io.Reader) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func decodeInto(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}

// signupAndSignin registers a user and returns a bearer token.
func (s *testServer) signupAndSignin(t *testing.T, email, name string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/user/signup", "", map[string]string{
		"email": email, "password": "password123", "name": name,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status=%d error=%+v", email, status, env.Error)
	}
	status, env = s.do(t, http.MethodPost, "/api/v1/user/signin", "", map[string]string{
		"email": email, "password": "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("signin %s: status=%d error=%+v", email, status, env.Error)
	}
	var out struct {
		Token string `json:"token"`
	}
	decodeInto(t, env, &out)
	if out.Token == "" {
		t.Fatal("expected token")
	}
	return out.Token
}

func (s *testServer) createProduct(t *testing.T, token, name string, launchPrice float64) uint {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/product/addproduct", token, map[string]any{
		"name": name, "launchPrice": launchPrice,
	})
	if status != http.StatusCreated {
		t.Fatalf("create product: status=%d error=%+v", status, env.Error)
	}
	var out struct {
		Product struct {
			ID uint `json:"id"`
		} `json:"product"`
	}
	decodeInto(t, env, &out)
	return out.Product.ID
}
