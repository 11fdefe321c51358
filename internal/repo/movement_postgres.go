package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

const queryTimeout = 3 * time.Second

const movementsSchema = `CREATE TABLE IF NOT EXISTS stock_movements (
	id SERIAL PRIMARY KEY,
	code TEXT NOT NULL,
	delta INT NOT NULL,
	kind TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

type PostgresMovementRepository struct {
	db *sql.DB
}

func NewPostgresMovementRepository(db *sql.DB) *PostgresMovementRepository {
	return &PostgresMovementRepository{db: db}
}

// EnsureSchema creates the movements table if it does not exist yet.
func (r *PostgresMovementRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, movementsSchema); err != nil {
		return fmt.Errorf("failed to create movements table: %w", err)
	}
	return nil
}

// Log inserts a new inventory movement
func (r *PostgresMovementRepository) Log(ctx context.Context, m models.Movement) (models.Movement, error) {
	query := `INSERT INTO stock_movements (code, delta, kind, reason, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, query, m.Code, m.Delta, string(m.Kind), m.Reason, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return models.Movement{}, fmt.Errorf("failed to insert movement: %w", err)
	}
	return m, nil
}

// GetByCode returns the movements of one product, newest first
func (r *PostgresMovementRepository) GetByCode(ctx context.Context, code string, mf MovementFilter) ([]models.Movement, int, error) {
	whereClause, args := r.buildWhereClause(code, mf)

	// Limit 0 means count only
	if mf.Limit != nil && *mf.Limit == 0 {
		total, err := r.getTotal(ctx, whereClause, args)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get total count: %w", err)
		}
		return []models.Movement{}, total, nil
	}

	if mf.Offset != nil && *mf.Offset < 0 {
		return nil, 0, errors.New("offset must be non-negative")
	}

	total, err := r.getTotal(ctx, whereClause, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	if mf.Offset != nil && *mf.Offset >= total {
		return []models.Movement{}, total, nil
	}

	query, queryArgs := r.buildMainQuery(whereClause, args, mf)
	movements, err := r.executeQuery(ctx, query, queryArgs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return movements, total, nil
}

func (r *PostgresMovementRepository) buildWhereClause(code string, mf MovementFilter) (string, []any) {
	args := []any{code}
	whereClause := "WHERE code = $1"
	argIndex := 2

	if mf.Since != nil {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *mf.Since)
		argIndex++
	}

	if mf.Until != nil {
		whereClause += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *mf.Until)
	}

	return whereClause, args
}

func (r *PostgresMovementRepository) buildMainQuery(whereClause string, baseArgs []any, mf MovementFilter) (string, []any) {
	query := fmt.Sprintf("SELECT id, code, delta, kind, reason, created_at FROM stock_movements %s ORDER BY created_at DESC, id DESC", whereClause)
	args := make([]any, len(baseArgs))
	copy(args, baseArgs)
	argIndex := len(baseArgs) + 1

	limit := defaultLimit
	if mf.Limit != nil && *mf.Limit > 0 {
		limit = min(*mf.Limit, defaultLimit)
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if mf.Offset != nil && *mf.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, *mf.Offset)
	}

	return query, args
}

func (r *PostgresMovementRepository) getTotal(ctx context.Context, whereClause string, args []any) (int, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM stock_movements %s", whereClause)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PostgresMovementRepository) executeQuery(ctx context.Context, query string, args []any) ([]models.Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		var m models.Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.Code, &m.Delta, &kind, &m.Reason, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = models.MovementKind(kind)
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return movements, nil
}
