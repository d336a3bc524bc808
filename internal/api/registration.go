package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/vat-gateway/internal/registration"
)

// Registrar is the registration service surface used by the handlers.
type Registrar interface {
	EmailExists(ctx context.Context, email string) (registration.EmailCheck, error)
	Register(ctx context.Context, req registration.Request) (*registration.Outcome, error)
}

// RegistrationHandler serves the email precheck and customer registration.
type RegistrationHandler struct {
	registrar Registrar
}

// NewRegistrationHandler creates a RegistrationHandler.
func NewRegistrationHandler(reg Registrar) *RegistrationHandler {
	return &RegistrationHandler{registrar: reg}
}

// Register mounts the registration routes on r.
func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/check-email", h.handleCheckEmail)
	r.Post("/api/register-customer", h.handleRegister)
}

func (h *RegistrationHandler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	check, err := h.registrar.EmailExists(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, registration.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "invalid_email")
			return
		}
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

type registerResponse struct {
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	Created    bool   `json:"created"`
}

func (h *RegistrationHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registration.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	out, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		var ve *registration.ValidationError
		var pe *registration.PlatformError
		switch {
		case errors.As(err, &ve):
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", ve.Message)
		case errors.As(err, &pe):
			zap.L().Error("api: registration platform failure",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("op", pe.Op),
				zap.Error(pe.Err),
			)
			writeError(w, http.StatusBadGateway, "platform_error")
		default:
			h.internalError(w, r, err)
		}
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, registerResponse{
		CustomerID: out.Customer.ID,
		Email:      out.Customer.Email,
		Created:    out.Created,
	})
}

func (h *RegistrationHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: registration failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error")
}
