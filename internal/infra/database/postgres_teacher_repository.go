package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt" // For error wrapping

	"github.com/lib/pq"

	"reading_program_bot/internal/domain/teacher"
)

// Custom errors
var ErrTeacherNotFound = fmt.Errorf("teacher not found")
var ErrDuplicateTelegramID = fmt.Errorf("teacher with this Telegram ID already exists")

const uniqueViolation = "23505"

const teacherColumns = `id, telegram_id, first_name, last_name, is_active, created_at, updated_at`

type PostgresTeacherRepository struct {
	db *sql.DB
}

func NewPostgresTeacherRepository(db *sql.DB) *PostgresTeacherRepository {
	return &PostgresTeacherRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeacher(row rowScanner) (*teacher.Teacher, error) {
	t := &teacher.Teacher{}
	err := row.Scan(&t.ID, &t.TelegramID, &t.FirstName, &t.LastName, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *PostgresTeacherRepository) Create(ctx context.Context, t *teacher.Teacher) error {
	query := `INSERT INTO teachers (telegram_id, first_name, last_name, is_active)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, t.TelegramID, t.FirstName, t.LastName, t.IsActive).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "teachers_telegram_id_key" {
			return ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating teacher: %w", err)
	}
	return nil
}

func (r *PostgresTeacherRepository) GetByID(ctx context.Context, id int64) (*teacher.Teacher, error) {
	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("error getting teacher by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*teacher.Teacher, error) {
	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE telegram_id = $1`, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("error getting teacher by Telegram ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) Update(ctx context.Context, t *teacher.Teacher) error {
	query := `UPDATE teachers
               SET first_name = $1, last_name = $2, is_active = $3, updated_at = NOW()
               WHERE id = $4
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, t.FirstName, t.LastName, t.IsActive, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("error updating teacher: %w", err)
	}
	return nil
}

func (r *PostgresTeacherRepository) ListActive(ctx context.Context) ([]*teacher.Teacher, error) {
	return r.list(ctx, "active", `SELECT `+teacherColumns+` FROM teachers WHERE is_active = TRUE ORDER BY first_name, last_name`)
}

func (r *PostgresTeacherRepository) ListAll(ctx context.Context) ([]*teacher.Teacher, error) {
	return r.list(ctx, "all", `SELECT `+teacherColumns+` FROM teachers ORDER BY id`)
}

// ListByIDs returns the roster entries for ids, skipping unknown ids.
func (r *PostgresTeacherRepository) ListByIDs(ctx context.Context, ids []int64) ([]*teacher.Teacher, error) {
	if len(ids) == 0 {
		return []*teacher.Teacher{}, nil
	}
	return r.list(ctx, "selected", `SELECT `+teacherColumns+` FROM teachers WHERE id = ANY($1::bigint[]) ORDER BY id`, pq.Array(ids))
}

func (r *PostgresTeacherRepository) list(ctx context.Context, label, query string, args ...any) ([]*teacher.Teacher, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s teachers: %w", label, err)
	}
	defer rows.Close()

	teachers := make([]*teacher.Teacher, 0)
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s teacher: %w", label, err)
		}
		teachers = append(teachers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s teachers: %w", label, err)
	}
	return teachers, nil
}
