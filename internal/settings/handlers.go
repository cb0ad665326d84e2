package settings

import (
	"errors"
	"net/http"

	"github.com/noah-isme/b2b-pricing/internal/common"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
)

// Handler exposes admin settings endpoints.
type Handler struct {
	store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Show handles GET /api/v1/admin/settings/pricing. It returns the
// validated policies currently in effect, surfacing configuration
// errors that would otherwise only appear on quote requests.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Load(r.Context())
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidConfiguration) {
			common.JSONError(w, http.StatusConflict, "CONFIG_INVALID", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Refresh handles POST /api/v1/admin/settings/pricing/refresh and
// drops the cached snapshot after an external settings edit.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Invalidate(r.Context()); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to invalidate settings cache", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
