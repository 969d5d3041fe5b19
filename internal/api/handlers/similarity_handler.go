package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/formbricks/similarity/internal/api/response"
	"github.com/formbricks/similarity/internal/api/validation"
	"github.com/formbricks/similarity/internal/simerrors"
)

// SimilarityService defines the interface the similarity handler depends on.
type SimilarityService interface {
	Compare(ctx context.Context, text1, text2 string) (float64, error)
}

// SimilarityHandler handles POST /semantic-similarity.
type SimilarityHandler struct {
	service SimilarityService
}

// NewSimilarityHandler creates a new similarity handler.
func NewSimilarityHandler(service SimilarityService) *SimilarityHandler {
	return &SimilarityHandler{service: service}
}

// SimilarityRequest is the body for POST /semantic-similarity. Unknown fields are ignored.
type SimilarityRequest struct {
	Text1 string `json:"text1" validate:"required"`
	Text2 string `json:"text2" validate:"required"`
}

// SimilarityResponse is the success body.
type SimilarityResponse struct {
	Similarity float64 `json:"similarity"`
}

// Compare handles POST /semantic-similarity.
func (h *SimilarityHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest

	if err := validation.DecodeJSON(r, &req); err != nil {
		switch {
		case errors.Is(err, validation.ErrBodyTooLarge):
			response.RespondError(w, http.StatusRequestEntityTooLarge, response.MessageBodyTooLarge)
		case errors.Is(err, io.EOF):
			// An empty body carries no texts at all.
			response.RespondBadRequest(w, response.MessageMissingInput)
		default:
			response.RespondBadRequest(w, response.MessageInvalidBody)
		}

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		if validation.HasTag(err, "required") {
			response.RespondBadRequest(w, response.MessageMissingInput)

			return
		}

		response.RespondBadRequest(w, response.MessageInvalidBody)

		return
	}

	score, err := h.service.Compare(r.Context(), req.Text1, req.Text2)
	if err != nil {
		h.respondCompareError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, SimilarityResponse{Similarity: score})
}

func (h *SimilarityHandler) respondCompareError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simerrors.ErrValidation):
		response.RespondBadRequest(w, response.MessageMissingInput)
	case errors.Is(err, simerrors.ErrInvalidEmbedding):
		slog.ErrorContext(r.Context(), "invalid embedding", "error", err)
		response.RespondInternalServerError(w, response.MessageInvalidEmbedding)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nobody reads the body.
		slog.DebugContext(r.Context(), "similarity request canceled by client", "error", err)
		response.RespondInternalServerError(w, response.MessageInternalError)
	default:
		slog.ErrorContext(r.Context(), "similarity failed", "error", err)
		response.RespondInternalServerError(w, response.MessageInternalError)
	}
}
