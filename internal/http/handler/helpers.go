package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

const maxJSONBodyBytes = 1 << 20

func parsePathID(input string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(input), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return uint(id), nil
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, fmt.Errorf("page_size must be <= %d", repository.MaxPageSize)
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}

func paginatedData[T any](items []T, page, pageSize int, total int64, totalPages int) map[string]any {
	return map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
		},
	}
}

// decodeJSON reads a single JSON object from the request body. Unknown
// fields are tolerated so older clients keep working.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeValidationError reports a 400 when err is a validation failure. The
// message is the field message when only one field was rejected.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) bool {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	message := "validation failed"
	if len(verr.Fields) == 1 {
		for _, msg := range verr.Fields {
			message = msg
		}
	}
	response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", message, verr.Fields)
	return true
}

func actorID(r *http.Request) string {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return strconv.FormatUint(uint64(id.UserID), 10)
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
