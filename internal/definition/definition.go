// Package definition stores merchant-authored discount configurations so that callers can
// evaluate a cart against a saved discount by id instead of shipping the blob inline.
package definition

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no definition exists for the id.
	ErrNotFound = errors.New("definition: not found")
	// ErrInvalidConfig wraps authoring validation failures.
	ErrInvalidConfig = errors.New("definition: invalid config")
)

// Definition is a named discount configuration.
type Definition struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Input is the writable part of a Definition.
type Input struct {
	Title  string          `json:"title" validate:"required,max=200"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// Repository persists definitions.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Definition, error)
	List(ctx context.Context, limit, offset int) ([]Definition, int, error)
	Create(ctx context.Context, def Definition) (Definition, error)
	Update(ctx context.Context, def Definition) (Definition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
