package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

type PriceHandler struct {
	svc service.PriceService
}

func NewPriceHandler(svc service.PriceService) *PriceHandler {
	return &PriceHandler{svc: svc}
}

// RequestPrice records the caller's desired price for a product. A repeat
// submission overwrites the previous value and reports created=false.
func (h *PriceHandler) RequestPrice(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var body struct {
		DesiredPrice *float64 `json:"desiredPrice"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if body.DesiredPrice == nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "Desired price is required",
			map[string]string{"desiredPrice": "Desired price is required"})
		return
	}

	res, err := h.svc.SubmitDesiredPrice(r.Context(), service.DesiredPriceInput{
		ProductID:    productID,
		UserID:       identity.UserID,
		DesiredPrice: *body.DesiredPrice,
	})
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		slog.ErrorContext(r.Context(), "request price failed", "product_id", productID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to request price", nil)
		return
	}

	message := "Request created successfully"
	reason := "request_created"
	if !res.Created {
		message = "Request updated successfully"
		reason = "request_updated"
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "product.price.request",
		ActorUserID: formatID(identity.UserID),
		TargetType:  "product",
		TargetID:    formatID(productID),
		Action:      "request_price",
		Outcome:     "success",
		Reason:      reason,
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"message": message,
		"request": res.Request,
		"created": res.Created,
	})
}

func (h *PriceHandler) FetchPrices(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	agg, err := h.svc.Aggregate(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		slog.ErrorContext(r.Context(), "fetch prices failed", "product_id", productID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to fetch prices", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, agg)
}

// Rankings serves the most overpriced and worth-it product lists. An absent
// limit uses the configured default.
func (h *PriceHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer", nil)
			return
		}
		limit = v
	}
	rankings, err := h.svc.Rankings(r.Context(), limit)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		slog.ErrorContext(r.Context(), "rank products failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to rank products", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, rankings)
}
