package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

// PostgresScheduleRepository implements domain.ScheduleRepository using
// PostgreSQL via pgx.
type PostgresScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScheduleRepository creates a new Postgres schedule repository.
func NewPostgresScheduleRepository(pool *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{pool: pool}
}

// EnsureSchema creates the schedule tables when missing.
func (r *PostgresScheduleRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schedules (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	schedule_date DATE NOT NULL,
	status TEXT NOT NULL,
	metrics JSONB NOT NULL,
	warnings JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, schedule_date)
);
CREATE TABLE IF NOT EXISTS schedule_items (
	schedule_id UUID NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	item_type TEXT NOT NULL,
	name TEXT NOT NULL,
	start_minutes INTEGER NOT NULL,
	end_minutes INTEGER NOT NULL,
	task_id UUID,
	PRIMARY KEY (schedule_id, position)
);`)
	return err
}

// Save persists a schedule, replacing any earlier one for the same user and
// date.
func (r *PostgresScheduleRepository) Save(ctx context.Context, schedule *domain.GeneratedSchedule) error {
	metrics, warnings, err := encodeJSONColumns(schedule)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM schedules WHERE id = $1 OR (user_id = $2 AND schedule_date = $3)`,
		schedule.ScheduleID, schedule.UserID, schedule.TargetDate,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO schedules (id, user_id, schedule_date, status, metrics, warnings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schedule.ScheduleID, schedule.UserID, schedule.TargetDate,
		schedule.Metrics.Status, metrics, warnings, time.Now().UTC(),
	); err != nil {
		return err
	}

	for i, item := range schedule.Items {
		var taskID *uuid.UUID
		if item.TaskID != nil {
			taskID = item.TaskID
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schedule_items (schedule_id, position, item_type, name, start_minutes, end_minutes, task_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			schedule.ScheduleID, i, string(item.Type), item.Name,
			item.StartMinutes, item.EndMinutes, taskID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindByID retrieves a schedule by its ID.
func (r *PostgresScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.GeneratedSchedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, to_char(schedule_date, 'YYYY-MM-DD'), metrics::text, warnings::text
		 FROM schedules WHERE id = $1`, id)
	return r.scanSchedule(ctx, row)
}

// FindByUserAndDate finds a schedule for a user on a specific date.
func (r *PostgresScheduleRepository) FindByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.GeneratedSchedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, to_char(schedule_date, 'YYYY-MM-DD'), metrics::text, warnings::text
		 FROM schedules WHERE user_id = $1 AND schedule_date = $2`, userID, date)
	return r.scanSchedule(ctx, row)
}

// Delete removes a schedule and its items.
func (r *PostgresScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

func (r *PostgresScheduleRepository) scanSchedule(ctx context.Context, row pgx.Row) (*domain.GeneratedSchedule, error) {
	var idStr, userStr, dateStr, metricsJSON, warningsJSON string
	if err := row.Scan(&idStr, &userStr, &dateStr, &metricsJSON, &warningsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	schedule, err := decodeScheduleRow(idStr, userStr, dateStr, metricsJSON, warningsJSON)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT item_type, name, start_minutes, end_minutes, task_id::text
		 FROM schedule_items WHERE schedule_id = $1 ORDER BY position`, schedule.ScheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemType, name string
			start, end     int
			taskID         *string
		)
		if err := rows.Scan(&itemType, &name, &start, &end, &taskID); err != nil {
			return nil, err
		}
		var taskStr string
		if taskID != nil {
			taskStr = *taskID
		}
		item, err := decodeItemRow(itemType, name, start, end, taskStr, taskID != nil)
		if err != nil {
			return nil, err
		}
		schedule.Items = append(schedule.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedule, nil
}
