// internal/infra/database/postgres_message_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/message"
)

type PostgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Get(ctx context.Context, personKey string, date time.Time) (*message.CachedMessage, error) {
	query := `SELECT person_key, occurrence_date, text, historical_fact, prompt_id, fallback, edited, generated_at
               FROM cached_messages
               WHERE person_key = $1 AND occurrence_date = $2`
	m := message.CachedMessage{}
	err := r.db.QueryRowContext(ctx, query, personKey, dateOnly(date)).Scan(
		&m.PersonKey, &m.OccurrenceDate, &m.Text, &m.HistoricalFact,
		&m.PromptID, &m.Fallback, &m.Edited, &m.GeneratedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("error getting cached message: %w", err)
	}
	return &m, nil
}

func (r *PostgresMessageRepository) Put(ctx context.Context, m *message.CachedMessage) error {
	query := `INSERT INTO cached_messages (person_key, occurrence_date, text, historical_fact, prompt_id, fallback, edited, generated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               ON CONFLICT (person_key, occurrence_date) DO UPDATE
               SET text = EXCLUDED.text, historical_fact = EXCLUDED.historical_fact,
                   prompt_id = EXCLUDED.prompt_id, fallback = EXCLUDED.fallback,
                   edited = EXCLUDED.edited, generated_at = EXCLUDED.generated_at`
	_, err := r.db.ExecContext(ctx, query, m.PersonKey, dateOnly(m.OccurrenceDate), m.Text,
		m.HistoricalFact, m.PromptID, m.Fallback, m.Edited, m.GeneratedAt)
	if err != nil {
		return fmt.Errorf("error upserting cached message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) Delete(ctx context.Context, personKey string, date time.Time) error {
	query := `DELETE FROM cached_messages WHERE person_key = $1 AND occurrence_date = $2`
	_, err := r.db.ExecContext(ctx, query, personKey, dateOnly(date))
	if err != nil {
		return fmt.Errorf("error deleting cached message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) DeleteNonEdited(ctx context.Context) error {
	query := `DELETE FROM cached_messages WHERE edited = FALSE`
	_, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error deleting non-edited cached messages: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) List(ctx context.Context) ([]*message.CachedMessage, error) {
	query := `SELECT person_key, occurrence_date, text, historical_fact, prompt_id, fallback, edited, generated_at
               FROM cached_messages ORDER BY occurrence_date, person_key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing cached messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*message.CachedMessage, 0)
	for rows.Next() {
		m := message.CachedMessage{}
		if err := rows.Scan(
			&m.PersonKey, &m.OccurrenceDate, &m.Text, &m.HistoricalFact,
			&m.PromptID, &m.Fallback, &m.Edited, &m.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning cached message row: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached message rows: %w", err)
	}
	return messages, nil
}

// dateOnly normalizes a timestamp to its date part for DATE columns.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
