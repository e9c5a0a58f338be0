package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
)

const (
	DefaultRankingLimit = 4
	MaxRankingLimit     = 20
)

type DesiredPriceInput struct {
	ProductID    uint
	UserID       uint
	DesiredPrice float64
}

type DesiredPriceResult struct {
	Request *domain.ProductRequest
	Created bool
}

// PriceAggregation maps each distinct desired price, formatted as a decimal
// string, to the number of users who asked for it.
type PriceAggregation struct {
	ProductID          uint             `json:"productId"`
	ProductName        string           `json:"productName"`
	AggregatedRequests map[string]int64 `json:"aggregatedRequests"`
}

// TopDesiredPrice reports the highest desired price. ok is false when no
// price has been requested.
func (a *PriceAggregation) TopDesiredPrice() (top float64, ok bool) {
	for key := range a.AggregatedRequests {
		price, err := strconv.ParseFloat(key, 64)
		if err != nil {
			continue
		}
		if !ok || price > top {
			top, ok = price, true
		}
	}
	return top, ok
}

type RankedProduct struct {
	ProductID       uint    `json:"id"`
	Name            string  `json:"name"`
	LaunchPrice     float64 `json:"launchPrice"`
	TopDesiredPrice float64 `json:"topDesiredPrice"`
	Difference      float64 `json:"difference"`
	ImageURL        string  `json:"imageUrl,omitempty"`

	imageKey string
}

type Rankings struct {
	MostOverpriced []RankedProduct `json:"mostOverpriced"`
	WorthIt        []RankedProduct `json:"worthIt"`
}

type PriceServiceConfig struct {
	CacheTTL            time.Duration
	DefaultRankingLimit int
}

type PriceServiceImpl struct {
	products repository.ProductRepository
	requests repository.ProductRequestRepository
	cache    PriceCacheStore
	images   ProductImageStorage
	cfg      PriceServiceConfig
	logger   *slog.Logger
}

// NewPriceService accepts a nil cache (treated as noop) and a nil images
// storage (rankings then carry no image URLs).
func NewPriceService(
	products repository.ProductRepository,
	requests repository.ProductRequestRepository,
	cache PriceCacheStore,
	images ProductImageStorage,
	cfg PriceServiceConfig,
	logger *slog.Logger,
) *PriceServiceImpl {
	if cache == nil {
		cache = NewNoopPriceCacheStore()
	}
	if cfg.DefaultRankingLimit < 1 || cfg.DefaultRankingLimit > MaxRankingLimit {
		cfg.DefaultRankingLimit = DefaultRankingLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceServiceImpl{
		products: products,
		requests: requests,
		cache:    cache,
		images:   images,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *PriceServiceImpl) SubmitDesiredPrice(ctx context.Context, input DesiredPriceInput) (*DesiredPriceResult, error) {
	outcome := "created"
	defer func() { observability.RecordPriceRequest(ctx, outcome) }()

	if input.DesiredPrice <= 0 || math.IsNaN(input.DesiredPrice) || math.IsInf(input.DesiredPrice, 0) {
		outcome = "bad_request"
		return nil, fieldError("desiredPrice", "desiredPrice must be greater than 0")
	}
	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		outcome = errorOutcome(err, repository.ErrProductNotFound)
		return nil, err
	}

	req := &domain.ProductRequest{
		ProductID:    input.ProductID,
		UserID:       input.UserID,
		DesiredPrice: input.DesiredPrice,
	}
	created, err := s.requests.Upsert(ctx, req)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if !created {
		outcome = "updated"
	}
	if err := s.cache.Invalidate(ctx, input.ProductID); err != nil {
		observability.RecordPriceCacheEvent(ctx, s.cache.Backend(), "invalidate_error")
		s.logger.WarnContext(ctx, "price cache invalidation failed", "product_id", input.ProductID, "error", err)
	} else {
		observability.RecordPriceCacheEvent(ctx, s.cache.Backend(), "invalidate")
	}
	return &DesiredPriceResult{Request: req, Created: created}, nil
}

func (s *PriceServiceImpl) Aggregate(ctx context.Context, productID uint) (*PriceAggregation, error) {
	ctx, span := observability.StartSpan(ctx, "price.aggregate", attribute.Int64("product.id", int64(productID)))
	defer span.End()

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	result := &PriceAggregation{ProductID: product.ID, ProductName: product.Name}

	// Read before the query so a submission landing mid-query bumps the
	// generation and the stale result below is not cached.
	generation, genErr := s.cache.Generation(ctx, productID)
	if genErr != nil {
		observability.RecordPriceCacheEvent(ctx, s.cache.Backend(), "error")
		s.logger.WarnContext(ctx, "price cache generation read failed", "product_id", productID, "error", genErr)
	} else if counts, ok := s.cachedCounts(ctx, productID); ok {
		result.AggregatedRequests = counts
		return result, nil
	}

	buckets, err := s.requests.AggregateByPrice(ctx, productID)
	if err != nil {
		return nil, err
	}
	result.AggregatedRequests = aggregateBuckets(buckets)
	observability.RecordPriceHistogramBuckets(ctx, len(buckets))

	if s.cfg.CacheTTL > 0 && genErr == nil {
		payload, err := json.Marshal(result.AggregatedRequests)
		if err == nil {
			err = s.cache.Set(ctx, productID, generation, payload, s.cfg.CacheTTL)
		}
		if err != nil {
			observability.RecordPriceCacheEvent(ctx, s.cache.Backend(), "set_error")
			s.logger.WarnContext(ctx, "price cache write failed", "product_id", productID, "error", err)
		}
	}
	return result, nil
}

func (s *PriceServiceImpl) cachedCounts(ctx context.Context, productID uint) (map[string]int64, bool) {
	backend := s.cache.Backend()
	payload, ok, err := s.cache.Get(ctx, productID)
	if err != nil {
		observability.RecordPriceCacheEvent(ctx, backend, "error")
		s.logger.WarnContext(ctx, "price cache read failed", "product_id", productID, "error", err)
		return nil, false
	}
	if !ok {
		observability.RecordPriceCacheEvent(ctx, backend, "miss")
		return nil, false
	}
	counts := map[string]int64{}
	if err := json.Unmarshal(payload, &counts); err != nil {
		observability.RecordPriceCacheEvent(ctx, backend, "corrupt")
		return nil, false
	}
	observability.RecordPriceCacheEvent(ctx, backend, "hit")
	return counts, true
}

func aggregateBuckets(buckets []domain.PriceBucket) map[string]int64 {
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[strconv.FormatFloat(b.DesiredPrice, 'f', -1, 64)] += b.Count
	}
	return out
}

// Rankings returns the most overpriced and the best value products. A limit
// of zero selects the configured default.
func (s *PriceServiceImpl) Rankings(ctx context.Context, limit int) (*Rankings, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "rankings", outcome, time.Since(start)) }()

	if limit == 0 {
		limit = s.cfg.DefaultRankingLimit
	}
	if limit < 1 || limit > MaxRankingLimit {
		outcome = "bad_request"
		return nil, fieldError("limit", "limit must be between 1 and 20")
	}

	ctx, span := observability.StartSpan(ctx, "price.rankings", attribute.Int("rankings.limit", limit))
	defer span.End()

	summaries, err := s.products.ListPriceSummaries(ctx)
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		return nil, err
	}
	rankings := Rank(summaries, limit)
	s.resolveImageURLs(ctx, rankings.MostOverpriced)
	s.resolveImageURLs(ctx, rankings.WorthIt)

	observability.RecordRankingListSize(ctx, "most_overpriced", len(rankings.MostOverpriced))
	observability.RecordRankingListSize(ctx, "worth_it", len(rankings.WorthIt))
	return &rankings, nil
}

func (s *PriceServiceImpl) resolveImageURLs(ctx context.Context, items []RankedProduct) {
	if s.images == nil {
		return
	}
	for i := range items {
		if items[i].imageKey == "" {
			continue
		}
		u, err := s.images.GenerateImageURL(ctx, items[i].imageKey)
		if err != nil {
			s.logger.WarnContext(ctx, "product image url failed", "product_id", items[i].ProductID, "error", err)
			continue
		}
		items[i].ImageURL = u
	}
}

// Rank orders products by launch price minus top desired price, largest
// first, ties by product id. Each list holds at most n entries and never
// more than half of the ranked products, so no product appears in both.
// WorthIt is ordered most negative difference first.
func Rank(summaries []domain.ProductPriceSummary, n int) Rankings {
	ranked := make([]RankedProduct, 0, len(summaries))
	for _, sm := range summaries {
		ranked = append(ranked, RankedProduct{
			ProductID:       sm.ProductID,
			Name:            sm.Name,
			LaunchPrice:     sm.LaunchPrice,
			TopDesiredPrice: sm.TopDesiredPrice,
			Difference:      sm.LaunchPrice - sm.TopDesiredPrice,
			imageKey:        sm.ImageKey,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Difference != ranked[j].Difference {
			return ranked[i].Difference > ranked[j].Difference
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

	k := n
	if half := len(ranked) / 2; k > half {
		k = half
	}
	if k < 0 {
		k = 0
	}
	out := Rankings{
		MostOverpriced: make([]RankedProduct, 0, k),
		WorthIt:        make([]RankedProduct, 0, k),
	}
	out.MostOverpriced = append(out.MostOverpriced, ranked[:k]...)
	for i := len(ranked) - 1; i >= len(ranked)-k; i-- {
		out.WorthIt = append(out.WorthIt, ranked[i])
	}
	return out
}

