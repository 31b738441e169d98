// Package repository persists scoring configurations.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"prospector_backend/internal/scoring/rules"
)

var (
	ErrNotFound = errors.New("scoring config not found")
	// ErrActiveConflict reports an insert that lost the single-active race.
	ErrActiveConflict = errors.New("another scoring config is already active")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateConfigParams struct {
	Name        string
	Description string
	IsActive    bool
	Categories  []rules.Category
}

func (r *Repository) Create(ctx context.Context, params CreateConfigParams) (rules.Config, error) {
	categories, err := json.Marshal(params.Categories)
	if err != nil {
		return rules.Config{}, err
	}

	var cfg rules.Config
	var raw []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO scoring_configs (name, description, is_active, categories)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, is_active, categories, created_at, updated_at
	`, params.Name, params.Description, params.IsActive, categories).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description, &cfg.IsActive, &raw, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return rules.Config{}, ErrActiveConflict
	}
	if err != nil {
		return rules.Config{}, err
	}
	if err := json.Unmarshal(raw, &cfg.Categories); err != nil {
		return rules.Config{}, err
	}
	return cfg, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (rules.Config, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_active, categories, created_at, updated_at
		FROM scoring_configs WHERE id = $1
	`, id)
	return scanConfig(row)
}

// GetActive returns the single active config, or ErrNotFound when none is
// active yet.
func (r *Repository) GetActive(ctx context.Context) (rules.Config, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_active, categories, created_at, updated_at
		FROM scoring_configs WHERE is_active = true
	`)
	return scanConfig(row)
}

func (r *Repository) List(ctx context.Context) ([]rules.Config, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, is_active, categories, created_at, updated_at
		FROM scoring_configs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]rules.Config, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cfg)
	}
	return items, rows.Err()
}

type UpdateConfigParams struct {
	Name        string
	Description string
	Categories  []rules.Category
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateConfigParams) (rules.Config, error) {
	categories, err := json.Marshal(params.Categories)
	if err != nil {
		return rules.Config{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE scoring_configs
		SET name = $2, description = $3, categories = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, name, description, is_active, categories, created_at, updated_at
	`, id, params.Name, params.Description, categories)
	return scanConfig(row)
}

// Activate switches the active config in one transaction so the partial
// unique index never observes two active rows.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) (rules.Config, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return rules.Config{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE scoring_configs SET is_active = false, updated_at = now()
		WHERE is_active = true AND id <> $1
	`, id); err != nil {
		return rules.Config{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE scoring_configs SET is_active = true, updated_at = now()
		WHERE id = $1
		RETURNING id, name, description, is_active, categories, created_at, updated_at
	`, id)
	cfg, err := scanConfig(row)
	if err != nil {
		return rules.Config{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return rules.Config{}, err
	}
	return cfg, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM scoring_configs WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanConfig(row scannable) (rules.Config, error) {
	var cfg rules.Config
	var raw []byte
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.IsActive, &raw, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rules.Config{}, ErrNotFound
	}
	if err != nil {
		return rules.Config{}, err
	}
	if err := json.Unmarshal(raw, &cfg.Categories); err != nil {
		return rules.Config{}, err
	}
	return cfg, nil
}
