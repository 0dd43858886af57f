package audit

import (
	"net/http"

	"github.com/noah-isme/discount-engine/internal/common"
)

// Lister reads recent entries.
type Lister interface {
	List(offset, limit int) ([]Entry, int)
}

// Handler exposes the recent audit trail to administrators.
type Handler struct {
	Store Lister
}

type listResponse struct {
	Data       []Entry     `json:"data"`
	Pagination common.Page `json:"pagination"`
}

// List returns a page of recent entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_NOT_CONFIGURED", "audit trail not configured", nil)
		return
	}
	page := common.ParsePage(r, 50, 200)
	entries, total := h.Store.List(page.Offset, page.Limit)
	page.Total = total
	common.JSON(w, http.StatusOK, listResponse{Data: entries, Pagination: page})
}
