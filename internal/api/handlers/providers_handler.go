package handlers

import (
	"net/http"

	"github.com/keelwise/keel/internal/api/response"
	"github.com/keelwise/keel/internal/service"
)

// ProviderStatusSource reports breaker and limiter state per provider.
type ProviderStatusSource interface {
	ProviderStatuses() []service.ProviderStatus
}

// ProvidersHandler handles GET /v1/providers.
type ProvidersHandler struct {
	source ProviderStatusSource
}

// NewProvidersHandler creates a ProvidersHandler.
func NewProvidersHandler(source ProviderStatusSource) *ProvidersHandler {
	return &ProvidersHandler{source: source}
}

// List returns one entry per configured provider, sorted by name.
func (h *ProvidersHandler) List(w http.ResponseWriter, _ *http.Request) {
	response.RespondSuccess(w, http.StatusOK, h.source.ProviderStatuses())
}
