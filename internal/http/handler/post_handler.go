package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

type PostHandler struct {
	svc service.PostService
}

func NewPostHandler(svc service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		TextContent string `json:"textContent"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	post, err := h.svc.Create(r.Context(), service.CreatePostInput{
		ProductID:   productID,
		UserID:      identity.UserID,
		TextContent: body.TextContent,
	})
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		slog.ErrorContext(r.Context(), "create post failed", "product_id", productID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create post", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "post.create",
		ActorUserID: formatID(identity.UserID),
		TargetType:  "post",
		TargetID:    formatID(post.ID),
		Action:      "create",
		Outcome:     "success",
		Reason:      "post_created",
	}, "product_id", productID)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"message": "Post created successfully",
		"post":    post,
	})
}

// ListByProduct returns posts ordered by likes, authors embedded.
func (h *PostHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	posts, err := h.svc.ListByProduct(r.Context(), productID)
	if err != nil {
		slog.ErrorContext(r.Context(), "fetch posts failed", "product_id", productID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to fetch posts", nil)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, domain.ReactionLike, "Post liked successfully")
}

func (h *PostHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, domain.ReactionDislike, "Post disliked successfully")
}

func (h *PostHandler) react(w http.ResponseWriter, r *http.Request, kind domain.ReactionKind, message string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	postID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid post id", nil)
		return
	}

	post, err := h.svc.React(r.Context(), postID, identity.UserID, kind)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "post not found", nil)
		case errors.Is(err, repository.ErrReactionExists):
			response.Error(w, r, http.StatusConflict, "CONFLICT", "reaction already recorded", nil)
		default:
			slog.ErrorContext(r.Context(), "post reaction failed", "post_id", postID, "kind", kind, "error", err)
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to "+string(kind)+" post", nil)
		}
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "post." + string(kind),
		ActorUserID: formatID(identity.UserID),
		TargetType:  "post",
		TargetID:    formatID(post.ID),
		Action:      string(kind),
		Outcome:     "success",
		Reason:      "reaction_recorded",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": message,
		"post":    post,
	})
}
