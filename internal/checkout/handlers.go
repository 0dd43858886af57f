package checkout

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/discount-engine/internal/common"
	"github.com/noah-isme/discount-engine/internal/discount"
)

// Evaluator is the part of Service the handler depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (discount.Result, error)
}

// HandlerConfig wires the run handler dependencies.
type HandlerConfig struct {
	Evaluator Evaluator
	Logger    *zerolog.Logger
}

// Handler serves cart evaluations.
type Handler struct {
	eval   Evaluator
	logger zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Handler{eval: cfg.Evaluator, logger: logger}
}

// Run decodes the cart and discount, evaluates them and writes the operation envelope.
// Only an unreadable body is a client error; everything else answers 200, possibly with
// no operations.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.eval.Evaluate(r.Context(), req)
	if err != nil {
		h.logger.Debug().Err(err).Msg("run answered with no operations")
	}
	common.JSON(w, http.StatusOK, res)
}
