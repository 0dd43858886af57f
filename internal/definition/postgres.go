package definition

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores definitions in the discount_definitions table.
type PostgresRepository struct {
	DB DB
}

const (
	selectColumns = `id, title, config, created_at, updated_at`

	getSQL = `SELECT ` + selectColumns + ` FROM discount_definitions WHERE id = $1`

	listSQL = `SELECT ` + selectColumns + `, count(*) OVER ()
FROM discount_definitions
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`

	countSQL = `SELECT count(*) FROM discount_definitions`

	insertSQL = `INSERT INTO discount_definitions (id, title, config)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`

	updateSQL = `UPDATE discount_definitions
SET title = $2, config = $3, updated_at = now()
WHERE id = $1
RETURNING created_at, updated_at`

	deleteSQL = `DELETE FROM discount_definitions WHERE id = $1`
)

func (r PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Definition, error) {
	var def Definition
	err := r.DB.QueryRow(ctx, getSQL, id).Scan(&def.ID, &def.Title, &def.Config, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrNotFound
		}
		return Definition{}, fmt.Errorf("get definition: %w", err)
	}
	return def, nil
}

func (r PostgresRepository) List(ctx context.Context, limit, offset int) ([]Definition, int, error) {
	rows, err := r.DB.Query(ctx, listSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	items := []Definition{}
	total := 0
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.ID, &def.Title, &def.Config, &def.CreatedAt, &def.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan definition: %w", err)
		}
		items = append(items, def)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list definitions: %w", err)
	}
	if len(items) == 0 && offset > 0 {
		// The window function yields no row past the end, so count separately.
		if err := r.DB.QueryRow(ctx, countSQL).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count definitions: %w", err)
		}
	}
	return items, total, nil
}

func (r PostgresRepository) Create(ctx context.Context, def Definition) (Definition, error) {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if err := r.DB.QueryRow(ctx, insertSQL, def.ID, def.Title, def.Config).Scan(&def.CreatedAt, &def.UpdatedAt); err != nil {
		return Definition{}, fmt.Errorf("insert definition: %w", err)
	}
	return def, nil
}

func (r PostgresRepository) Update(ctx context.Context, def Definition) (Definition, error) {
	if err := r.DB.QueryRow(ctx, updateSQL, def.ID, def.Title, def.Config).Scan(&def.CreatedAt, &def.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrNotFound
		}
		return Definition{}, fmt.Errorf("update definition: %w", err)
	}
	return def, nil
}

func (r PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
