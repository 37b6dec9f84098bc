package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/repcoach/internal/models"
)

var ErrSetNotFound = errors.New("workout set not found")

// WorkoutRepo stores finished sets.
type WorkoutRepo struct {
	db *DB
}

func NewWorkoutRepo(db *DB) *WorkoutRepo {
	return &WorkoutRepo{db: db}
}

func (r *WorkoutRepo) InsertSet(ctx context.Context, set *models.WorkoutSet) error {
	query := fmt.Sprintf(`
		INSERT INTO workout_sets (id, session_id, mode, reps, started_at, ended_at)
		VALUES (%s, %s, %s, %s, %s, %s)`,
		r.db.placeholder(1), r.db.placeholder(2), r.db.placeholder(3),
		r.db.placeholder(4), r.db.placeholder(5), r.db.placeholder(6))

	_, err := r.db.conn.ExecContext(ctx, query,
		set.ID, set.SessionID, set.Mode, set.Reps,
		set.StartedAt.UTC(), set.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workout set: %w", err)
	}
	return nil
}

// RecordSet satisfies workout.SetRecorder.
func (r *WorkoutRepo) RecordSet(ctx context.Context, set *models.WorkoutSet) error {
	return r.InsertSet(ctx, set)
}

func (r *WorkoutRepo) GetSet(ctx context.Context, id string) (*models.WorkoutSet, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, mode, reps, started_at, ended_at
		FROM workout_sets WHERE id = %s`, r.db.placeholder(1))

	set, err := scanSet(r.db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workout set: %w", err)
	}
	return set, nil
}

// ListSets returns the most recent sets first. limit <= 0 means no limit.
func (r *WorkoutRepo) ListSets(ctx context.Context, limit int) ([]*models.WorkoutSet, error) {
	query := `
		SELECT id, session_id, mode, reps, started_at, ended_at
		FROM workout_sets ORDER BY ended_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT " + r.db.placeholder(1)
		args = append(args, limit)
	}
	return r.querySets(ctx, query, args...)
}

func (r *WorkoutRepo) ListSetsBySession(ctx context.Context, sessionID string) ([]*models.WorkoutSet, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, mode, reps, started_at, ended_at
		FROM workout_sets WHERE session_id = %s ORDER BY ended_at ASC`, r.db.placeholder(1))
	return r.querySets(ctx, query, sessionID)
}

// Totals aggregates sets and reps per exercise mode.
func (r *WorkoutRepo) Totals(ctx context.Context) ([]models.ModeTotal, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT mode, COUNT(*), COALESCE(SUM(reps), 0)
		FROM workout_sets GROUP BY mode ORDER BY mode`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []models.ModeTotal
	for rows.Next() {
		var t models.ModeTotal
		if err := rows.Scan(&t.Mode, &t.Sets, &t.Reps); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *WorkoutRepo) querySets(ctx context.Context, query string, args ...any) ([]*models.WorkoutSet, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workout sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.WorkoutSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(row scanner) (*models.WorkoutSet, error) {
	var set models.WorkoutSet
	var started, ended time.Time
	if err := row.Scan(&set.ID, &set.SessionID, &set.Mode, &set.Reps, &started, &ended); err != nil {
		return nil, err
	}
	set.StartedAt = started.UTC()
	set.EndedAt = ended.UTC()
	return &set, nil
}
