package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

// multipartOverheadBytes is allowed on top of the image size for form
// boundaries and part headers.
const multipartOverheadBytes = 64 << 10

type ProductHandler struct {
	svc           service.ProductService
	maxImageBytes int64
}

func NewProductHandler(svc service.ProductService, maxImageBytes int64) *ProductHandler {
	return &ProductHandler{svc: svc, maxImageBytes: maxImageBytes}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string  `json:"name"`
		LaunchPrice float64 `json:"launchPrice"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateProductInput{
		Name:        body.Name,
		LaunchPrice: body.LaunchPrice,
	})
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		slog.ErrorContext(r.Context(), "create product failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create product", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "product.create",
		ActorUserID: actorID(r),
		TargetType:  "product",
		TargetID:    formatID(created.ID),
		Action:      "create",
		Outcome:     "success",
		Reason:      "product_created",
	}, "name", created.Name)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": created,
	})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	res, err := h.svc.ListPaged(r.Context(), pageReq)
	if err != nil {
		slog.ErrorContext(r.Context(), "list products failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, paginatedData(res.Items, res.Page, res.PageSize, res.Total, res.TotalPages))
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	product, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		slog.ErrorContext(r.Context(), "get product failed", "product_id", id, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to get product", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"product": product})
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		slog.ErrorContext(r.Context(), "search products failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to search products", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"products": products})
}

// UploadImage accepts a multipart form with a single "image" part.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverheadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image exceeds size limit", nil)
			return
		}
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "image file is required", nil)
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.svc.AttachImage(r.Context(), service.ProductImageInput{
		ProductID: id,
		File:      file,
		Size:      header.Size,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStorageDisabled):
			response.Error(w, r, http.StatusServiceUnavailable, "STORAGE_DISABLED", "image storage is disabled", nil)
		case errors.Is(err, repository.ErrProductNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		case errors.Is(err, service.ErrFileTooBig):
			response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image exceeds size limit", nil)
		case errors.Is(err, service.ErrInvalidFileType):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			slog.ErrorContext(r.Context(), "upload product image failed", "product_id", id, "error", err)
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to upload product image", nil)
		}
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "product.image.upload",
		ActorUserID: actorID(r),
		TargetType:  "product",
		TargetID:    formatID(res.Product.ID),
		Action:      "upload_image",
		Outcome:     "success",
		Reason:      "image_attached",
	}, "size", header.Size)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"product":  res.Product,
		"imageUrl": res.ImageURL,
	})
}
