package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adityakurhade/finsight/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Username, user.Email, user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, email, created_at FROM users
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// DeleteUser removes the account. The analyses FK is ON DELETE SET NULL, so
// the user's analysis records survive with the reference cleared.
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analyses ---

func (s *PostgresStore) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (task_id, user_id, filename, file_size, query, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		analysis.TaskID, analysis.UserID, analysis.Filename, analysis.FileSize,
		analysis.Query, analysis.Status, analysis.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Analysis, error) {
	var a models.Analysis
	err := s.pool.QueryRow(ctx,
		`SELECT task_id, user_id, filename, file_size, query, status, result, error, created_at, completed_at
		 FROM analyses WHERE task_id = $1`, taskID,
	).Scan(&a.TaskID, &a.UserID, &a.Filename, &a.FileSize, &a.Query,
		&a.Status, &a.Result, &a.Error, &a.CreatedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

// UpdateAnalysisStatus mutates the row keyed by task_id with update-if-exists
// semantics. Terminal rows are never overwritten: a redelivered queue task or
// a late duplicate write lands as a no-op, and completed_at is set at most
// once via COALESCE.
func (s *PostgresStore) UpdateAnalysisStatus(ctx context.Context, taskID uuid.UUID, status string, opts ...AnalysisUpdateOption) error {
	params := &AnalysisUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	var completedAt *time.Time
	if models.IsTerminal(status) {
		now := time.Now().UTC()
		completedAt = &now
		if params.CompletedAt != nil {
			completedAt = params.CompletedAt
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses
		 SET status = $2,
		     result = COALESCE($3, result),
		     error = COALESCE($4, error),
		     completed_at = COALESCE(completed_at, $5)
		 WHERE task_id = $1 AND status NOT IN ('success', 'failed')`,
		taskID, status, params.Result, params.ErrorMessage, completedAt)
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row does not exist or it is already terminal.
		var current string
		err := s.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE task_id = $1`, taskID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get analysis status: %w", err)
		}
		// Already terminal: duplicate delivery, keep the first outcome.
		return nil
	}
	return nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error) {
	// Build WHERE clause dynamically; filters combine with AND.
	conditions := []string{"1=1"}
	args := []any{}
	argIdx := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM analyses WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	limit := normalizeLimit(filter.Limit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	dataQuery := fmt.Sprintf(
		`SELECT task_id, user_id, filename, file_size, query, status, result, error, created_at, completed_at
		 FROM analyses WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		var a models.Analysis
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.Filename, &a.FileSize, &a.Query,
			&a.Status, &a.Result, &a.Error, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, &a)
	}
	return analyses, total, rows.Err()
}

func (s *PostgresStore) GetAnalysisStats(ctx context.Context, userID *uuid.UUID) (*models.AnalysisStats, error) {
	where := ""
	args := []any{}
	if userID != nil {
		where = "WHERE user_id = $1"
		args = append(args, *userID)
	}

	var stats models.AnalysisStats
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT
		     COUNT(*),
		     COUNT(*) FILTER (WHERE status = 'success'),
		     COUNT(*) FILTER (WHERE status = 'failed'),
		     COUNT(*) FILTER (WHERE status IN ('queued', 'processing', 'retrying')),
		     COALESCE(SUM(file_size), 0)
		 FROM analyses %s`, where), args...,
	).Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &stats.InProgress, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("get analysis stats: %w", err)
	}
	return &stats, nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
