// internal/infra/database/postgres_prompt_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_bot/internal/domain/prompt"
)

type PostgresPromptRepository struct {
	db *sql.DB
}

func NewPostgresPromptRepository(db *sql.DB) *PostgresPromptRepository {
	return &PostgresPromptRepository{db: db}
}

func (r *PostgresPromptRepository) Create(ctx context.Context, t *prompt.Template) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for prompt create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if t.Active {
		if _, err := txn.ExecContext(ctx, `UPDATE prompt_templates SET active = FALSE WHERE active = TRUE`); err != nil {
			return fmt.Errorf("error deactivating previous prompt: %w", err)
		}
	}
	query := `INSERT INTO prompt_templates (id, text, description, created_at, active)
               VALUES ($1, $2, $3, $4, $5)`
	if _, err := txn.ExecContext(ctx, query, t.ID, t.Text, t.Description, t.CreatedAt, t.Active); err != nil {
		return fmt.Errorf("error creating prompt template: %w", err)
	}
	return txn.Commit()
}

func (r *PostgresPromptRepository) GetActive(ctx context.Context) (*prompt.Template, error) {
	query := `SELECT id, text, description, created_at, active FROM prompt_templates WHERE active = TRUE`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

func (r *PostgresPromptRepository) Get(ctx context.Context, id string) (*prompt.Template, error) {
	query := `SELECT id, text, description, created_at, active FROM prompt_templates WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Activate deactivates the current template and activates the given
// one in a single transaction, so the one-active invariant holds at
// every commit point.
func (r *PostgresPromptRepository) Activate(ctx context.Context, id string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for prompt activate: %w", err)
	}
	defer txn.Rollback()

	// Deactivate first: the partial unique index on active rows would
	// reject two active templates within a single statement boundary.
	if _, err := txn.ExecContext(ctx, `UPDATE prompt_templates SET active = FALSE WHERE active = TRUE AND id <> $1`, id); err != nil {
		return fmt.Errorf("error deactivating previous prompt: %w", err)
	}
	res, err := txn.ExecContext(ctx, `UPDATE prompt_templates SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error activating prompt template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking activation result: %w", err)
	}
	if affected == 0 {
		return ErrPromptNotFound
	}
	return txn.Commit()
}

func (r *PostgresPromptRepository) List(ctx context.Context) ([]*prompt.Template, error) {
	query := `SELECT id, text, description, created_at, active FROM prompt_templates ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing prompt templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*prompt.Template, 0)
	for rows.Next() {
		t := prompt.Template{}
		if err := rows.Scan(&t.ID, &t.Text, &t.Description, &t.CreatedAt, &t.Active); err != nil {
			return nil, fmt.Errorf("error scanning prompt template row: %w", err)
		}
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt template rows: %w", err)
	}
	return templates, nil
}

func (r *PostgresPromptRepository) scanOne(row *sql.Row) (*prompt.Template, error) {
	t := prompt.Template{}
	err := row.Scan(&t.ID, &t.Text, &t.Description, &t.CreatedAt, &t.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("error getting prompt template: %w", err)
	}
	return &t, nil
}
