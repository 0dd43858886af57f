package definition

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/discount-engine/internal/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the service surface the admin handler depends on.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Definition, error)
	List(ctx context.Context, limit, offset int) ([]Definition, int, error)
	Create(ctx context.Context, in Input) (Definition, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (Definition, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error)
}

// HandlerConfig wires the admin handler dependencies.
type HandlerConfig struct {
	Store  Store
	Logger *zerolog.Logger
}

// Handler exposes administrative discount definition endpoints.
type Handler struct {
	store  Store
	logger zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Handler{store: cfg.Store, logger: logger}
}

// Routes mounts the handlers on r. Callers are expected to wrap r with authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/preview", h.Preview)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type listResponse struct {
	Data       []Definition `json:"data"`
	Pagination common.Page  `json:"pagination"`
}

// Create stores a new definition.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	def, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": def})
}

// List returns a page of definitions, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePage(r, defaultPageSize, maxPageSize)
	defs, total, err := h.store.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if defs == nil {
		defs = []Definition{}
	}
	page.Total = total
	common.JSON(w, http.StatusOK, listResponse{Data: defs, Pagination: page})
}

// Get returns a single definition.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	def, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def})
}

// Update replaces a definition's title and configuration.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	def, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def})
}

// Delete removes a definition.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview evaluates an unsaved configuration against a sample cart.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.store.Preview(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid discount id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, "invalid discount definition", verr.Fields)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "discount not found", nil)
	case errors.Is(err, ErrConfigTooLarge):
		common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodeTooLarge, "discount config too large", nil)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("definition request failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}
