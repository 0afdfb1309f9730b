// internal/infra/database/postgres_sent_ledger.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/message"
)

type PostgresSentLedger struct {
	db *sql.DB
}

func NewPostgresSentLedger(db *sql.DB) *PostgresSentLedger {
	return &PostgresSentLedger{db: db}
}

func (l *PostgresSentLedger) Get(ctx context.Context, personKey string, date time.Time) (*message.SentRecord, error) {
	query := `SELECT person_key, occurrence_date, sent_at FROM sent_records
               WHERE person_key = $1 AND occurrence_date = $2`
	rec := message.SentRecord{}
	err := l.db.QueryRowContext(ctx, query, personKey, dateOnly(date)).Scan(
		&rec.PersonKey, &rec.OccurrenceDate, &rec.SentAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSentRecordNotFound
		}
		return nil, fmt.Errorf("error getting sent record: %w", err)
	}
	return &rec, nil
}

func (l *PostgresSentLedger) Record(ctx context.Context, rec *message.SentRecord) error {
	query := `INSERT INTO sent_records (person_key, occurrence_date, sent_at)
               VALUES ($1, $2, $3)
               ON CONFLICT (person_key, occurrence_date) DO NOTHING`
	_, err := l.db.ExecContext(ctx, query, rec.PersonKey, dateOnly(rec.OccurrenceDate), rec.SentAt)
	if err != nil {
		return fmt.Errorf("error recording sent record: %w", err)
	}
	return nil
}

func (l *PostgresSentLedger) Clear(ctx context.Context, personKey string, date time.Time) error {
	query := `DELETE FROM sent_records WHERE person_key = $1 AND occurrence_date = $2`
	_, err := l.db.ExecContext(ctx, query, personKey, dateOnly(date))
	if err != nil {
		return fmt.Errorf("error clearing sent record: %w", err)
	}
	return nil
}
