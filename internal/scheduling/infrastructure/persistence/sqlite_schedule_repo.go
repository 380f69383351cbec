// Package persistence stores generated schedules in SQLite or Postgres.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	schedule_date TEXT NOT NULL,
	status TEXT NOT NULL,
	metrics TEXT NOT NULL,
	warnings TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (user_id, schedule_date)
);
CREATE TABLE IF NOT EXISTS schedule_items (
	schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	item_type TEXT NOT NULL,
	name TEXT NOT NULL,
	start_minutes INTEGER NOT NULL,
	end_minutes INTEGER NOT NULL,
	task_id TEXT,
	PRIMARY KEY (schedule_id, position)
);
`

// OpenSQLite opens the database at path with the standard pragmas and
// creates the schema when missing.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	// - journal_mode=WAL: Write-Ahead Logging for better concurrency
	// - foreign_keys=ON: Enforce foreign key constraints
	// - busy_timeout=5000: Wait 5s on lock instead of failing immediately
	// - synchronous=NORMAL: Good balance of safety and speed
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite doesn't support multiple writers, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// SQLiteScheduleRepository implements domain.ScheduleRepository using SQLite.
type SQLiteScheduleRepository struct {
	db *sql.DB
}

// NewSQLiteScheduleRepository creates a new SQLite schedule repository.
func NewSQLiteScheduleRepository(db *sql.DB) *SQLiteScheduleRepository {
	return &SQLiteScheduleRepository{db: db}
}

// Save persists a schedule, replacing any earlier one for the same user and
// date. Items are deleted and re-inserted in order.
func (r *SQLiteScheduleRepository) Save(ctx context.Context, schedule *domain.GeneratedSchedule) error {
	metrics, warnings, err := encodeJSONColumns(schedule)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A regenerated day for the same user and date may carry the same id
	// (deterministic generation) or a new one; clear both forms.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE id = ? OR (user_id = ? AND schedule_date = ?)`,
		schedule.ScheduleID.String(), schedule.UserID.String(), dateKey(schedule.TargetDate),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (id, user_id, schedule_date, status, metrics, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		schedule.ScheduleID.String(),
		schedule.UserID.String(),
		dateKey(schedule.TargetDate),
		schedule.Metrics.Status,
		metrics,
		warnings,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	for i, item := range schedule.Items {
		var taskID sql.NullString
		if item.TaskID != nil {
			taskID = sql.NullString{String: item.TaskID.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_items (schedule_id, position, item_type, name, start_minutes, end_minutes, task_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			schedule.ScheduleID.String(), i, string(item.Type), item.Name,
			item.StartMinutes, item.EndMinutes, taskID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindByID retrieves a schedule by its ID.
func (r *SQLiteScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.GeneratedSchedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, schedule_date, metrics, warnings FROM schedules WHERE id = ?`,
		id.String())
	return r.scanSchedule(ctx, row)
}

// FindByUserAndDate finds a schedule for a user on a specific date.
func (r *SQLiteScheduleRepository) FindByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.GeneratedSchedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, schedule_date, metrics, warnings FROM schedules WHERE user_id = ? AND schedule_date = ?`,
		userID.String(), dateKey(date))
	return r.scanSchedule(ctx, row)
}

// Delete removes a schedule and its items.
func (r *SQLiteScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id.String())
	return err
}

func (r *SQLiteScheduleRepository) scanSchedule(ctx context.Context, row *sql.Row) (*domain.GeneratedSchedule, error) {
	var (
		idStr, userStr, dateStr string
		metricsJSON             string
		warningsJSON            string
	)
	if err := row.Scan(&idStr, &userStr, &dateStr, &metricsJSON, &warningsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	schedule, err := decodeScheduleRow(idStr, userStr, dateStr, metricsJSON, warningsJSON)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT item_type, name, start_minutes, end_minutes, task_id
		 FROM schedule_items WHERE schedule_id = ? ORDER BY position`,
		idStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemType, name string
			start, end     int
			taskID         sql.NullString
		)
		if err := rows.Scan(&itemType, &name, &start, &end, &taskID); err != nil {
			return nil, err
		}
		item, err := decodeItemRow(itemType, name, start, end, taskID.String, taskID.Valid)
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

// Shared row codecs for both backends.

func dateKey(date time.Time) string {
	return date.Format("2006-01-02")
}

func encodeJSONColumns(schedule *domain.GeneratedSchedule) (metrics, warnings string, err error) {
	mb, err := json.Marshal(schedule.Metrics)
	if err != nil {
		return "", "", fmt.Errorf("encoding metrics: %w", err)
	}
	if schedule.Warnings == nil {
		schedule.Warnings = []string{}
	}
	wb, err := json.Marshal(schedule.Warnings)
	if err != nil {
		return "", "", fmt.Errorf("encoding warnings: %w", err)
	}
	return string(mb), string(wb), nil
}

func decodeScheduleRow(idStr, userStr, dateStr, metricsJSON, warningsJSON string) (*domain.GeneratedSchedule, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt schedule id %q: %w", idStr, err)
	}
	userID, err := uuid.Parse(userStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", userStr, err)
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt schedule date %q: %w", dateStr, err)
	}

	schedule := &domain.GeneratedSchedule{
		ScheduleID: id,
		UserID:     userID,
		TargetDate: date,
	}
	if err := json.Unmarshal([]byte(metricsJSON), &schedule.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &schedule.Warnings); err != nil {
		return nil, fmt.Errorf("decoding warnings: %w", err)
	}
	return schedule, nil
}

func decodeItemRow(itemType, name string, start, end int, taskID string, hasTask bool) (domain.ScheduledItem, error) {
	item := domain.ScheduledItem{
		Type:         domain.ItemType(itemType),
		Name:         name,
		StartMinutes: start,
		EndMinutes:   end,
	}
	if hasTask {
		id, err := uuid.Parse(taskID)
		if err != nil {
			return domain.ScheduledItem{}, fmt.Errorf("corrupt task id %q: %w", taskID, err)
		}
		item.TaskID = &id
	}
	return item, nil
}
