// internal/infra/database/postgres_fact_history.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_bot/internal/domain/message"
)

type PostgresFactHistory struct {
	db *sql.DB
}

func NewPostgresFactHistory(db *sql.DB) *PostgresFactHistory {
	return &PostgresFactHistory{db: db}
}

func (h *PostgresFactHistory) Append(ctx context.Context, rec *message.FactRecord) error {
	query := `INSERT INTO fact_history (person_key, year, fact_text, used_at)
               VALUES ($1, $2, $3, $4)`
	_, err := h.db.ExecContext(ctx, query, rec.PersonKey, rec.Year, rec.FactText, rec.UsedAt)
	if err != nil {
		return fmt.Errorf("error appending fact record: %w", err)
	}
	return nil
}

func (h *PostgresFactHistory) ListSince(ctx context.Context, personKey string, sinceYear int) ([]*message.FactRecord, error) {
	query := `SELECT person_key, year, fact_text, used_at
               FROM fact_history
               WHERE person_key = $1 AND year >= $2
               ORDER BY year`
	rows, err := h.db.QueryContext(ctx, query, personKey, sinceYear)
	if err != nil {
		return nil, fmt.Errorf("error listing fact records: %w", err)
	}
	defer rows.Close()

	records := make([]*message.FactRecord, 0)
	for rows.Next() {
		rec := message.FactRecord{}
		if err := rows.Scan(&rec.PersonKey, &rec.Year, &rec.FactText, &rec.UsedAt); err != nil {
			return nil, fmt.Errorf("error scanning fact record row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fact record rows: %w", err)
	}
	return records, nil
}

func (h *PostgresFactHistory) PurgePerson(ctx context.Context, personKey string) error {
	query := `DELETE FROM fact_history WHERE person_key = $1`
	_, err := h.db.ExecContext(ctx, query, personKey)
	if err != nil {
		return fmt.Errorf("error purging fact records for %s: %w", personKey, err)
	}
	return nil
}
