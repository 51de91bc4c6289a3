package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/catalog"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// ProductHandler serves the read-only product catalog.
type ProductHandler struct {
	catalog catalog.Catalog
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(cat catalog.Catalog, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: cat,
		logger:  log,
	}
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	filter := catalog.Filter{
		Category: r.URL.Query().Get("category"),
		Type:     r.URL.Query().Get("type"),
	}
	writeJSON(w, http.StatusOK, filter.Apply(products))
}
