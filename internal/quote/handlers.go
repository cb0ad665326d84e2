package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/b2b-pricing/internal/common"
	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
)

// maxBatchSize caps the number of SKUs a single batch request may carry.
const maxBatchSize = 200

// Handler exposes quote endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Single handles GET /api/v1/customers/{code}/products/{sku}/quote.
func (h *Handler) Single(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	if code == "" || sku == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "customer code and sku are required", nil)
		return
	}
	result, err := h.service.Quote(r.Context(), code, sku)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

type batchRequest struct {
	CustomerCode string   `json:"customerCode"`
	SKUs         []string `json:"skus"`
}

// Batch handles POST /api/v1/quotes.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	req.CustomerCode = strings.TrimSpace(req.CustomerCode)
	if req.CustomerCode == "" || len(req.SKUs) == 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "customerCode and skus are required", nil)
		return
	}
	if len(req.SKUs) > maxBatchSize {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "too many skus in one request", map[string]int{"max": maxBatchSize})
		return
	}
	results, err := h.service.QuoteBatch(r.Context(), req.CustomerCode, req.SKUs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": results})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, erp.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidConfiguration):
		common.JSONError(w, http.StatusInternalServerError, "CONFIG_INVALID", "pricing configuration is invalid", nil)
	default:
		if appErr, ok := common.AsAppError(err); ok {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to compute quote", nil)
	}
}
