package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	ProductID   uint
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status5xx     int64
}

// Summary renders the counters as key=value lines for tool output.
func (r Result) Summary() []string {
	return []string{
		fmt.Sprintf("total_requests=%d", r.TotalRequests),
		fmt.Sprintf("failures=%d", r.Failures),
		fmt.Sprintf("status_2xx=%d status_4xx=%d status_5xx=%d", r.Status2xx, r.Status4xx, r.Status5xx),
	}
}

type target struct {
	method string
	path   string
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ProductID == 0 {
		cfg.ProductID = 1
	}
	profile := strings.ToLower(cfg.Profile)
	if profile == "" {
		profile = "mixed"
	}

	targets := targetsForProfile(profile, cfg.ProductID)
	if len(targets) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures, s2xx, s4xx, s5xx int64
	jobs := make(chan target, cfg.Concurrency*2)
	wg := sync.WaitGroup{}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				req, err := http.NewRequestWithContext(ctx, t.method, baseURL+t.path, nil)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					observability.RecordLoadgenRequest(context.Background(), "transport_error", profile)
					continue
				}
				_ = resp.Body.Close()
				atomic.AddInt64(&total, 1)
				observability.RecordLoadgenRequest(context.Background(), statusClass(resp.StatusCode), profile)
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&s2xx, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&s4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&s5xx, 1)
				}
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return Result{
				TotalRequests: atomic.LoadInt64(&total),
				Failures:      atomic.LoadInt64(&failures),
				Status2xx:     atomic.LoadInt64(&s2xx),
				Status4xx:     atomic.LoadInt64(&s4xx),
				Status5xx:     atomic.LoadInt64(&s5xx),
			}, nil
		case <-ticker.C:
			select {
			case jobs <- targets[i%len(targets)]:
				i++
			case <-ctx.Done():
			}
		}
	}
}

func targetsForProfile(profile string, productID uint) []target {
	product := fmt.Sprintf("/api/v1/product/%d", productID)
	browse := []target{
		{http.MethodGet, "/api/v1/product?page=1&page_size=20"},
		{http.MethodGet, "/api/v1/product/search?query=pro"},
		{http.MethodGet, "/api/v1/product/rankings"},
		{http.MethodGet, product},
		{http.MethodGet, product + "/fetchprices"},
		{http.MethodGet, product + "/fetchposts"},
	}
	errorHeavy := []target{
		{http.MethodGet, "/api/v1/product/999999999/fetchprices"},
		{http.MethodGet, "/api/v1/product/abc"},
		{http.MethodGet, "/api/v1/product/rankings?limit=0"},
		{http.MethodPost, product + "/requestprice"},
		{http.MethodPost, "/api/v1/post/1/like"},
	}
	switch profile {
	case "browse":
		return browse
	case "mixed":
		return append(append([]target{}, browse...), errorHeavy[:2]...)
	case "error-heavy":
		return errorHeavy
	default:
		return nil
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
