package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/vat-gateway/internal/vat"
)

// Verifier verifies a raw VAT identifier.
type Verifier interface {
	Verify(ctx context.Context, raw string) (vat.Result, error)
}

// VATHandler serves VAT validation.
type VATHandler struct {
	verifier Verifier
}

// NewVATHandler creates a VATHandler.
func NewVATHandler(v Verifier) *VATHandler {
	return &VATHandler{verifier: v}
}

// Register mounts the VAT routes on r.
func (h *VATHandler) Register(r chi.Router) {
	r.Post("/api/validate-vat", h.handleValidate)
}

type validateRequest struct {
	VATNumber string `json:"vat_number"`
}

type validateResponse struct {
	Valid   bool    `json:"valid"`
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Source  string  `json:"source"`
}

func (h *VATHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	res, err := h.verifier.Verify(r.Context(), req.VATNumber)
	switch {
	case err == nil:
	case errors.Is(err, vat.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid_identifier")
		return
	case errors.Is(err, vat.ErrUnverifiable):
		writeError(w, http.StatusServiceUnavailable, "vat_unverifiable")
		return
	default:
		zap.L().Error("api: vat verification failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, validateResponse{
		Valid:   res.Valid,
		Name:    res.Name,
		Address: res.Address,
		Source:  string(res.Source),
	})
}
