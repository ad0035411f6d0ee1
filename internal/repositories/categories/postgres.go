package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/dbx"
	"github.com/dmitrijs2005/mediaingest/internal/models"
)

// PostgresRepository implements category storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns common.ErrorNotFound when no category has id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT category_id, creator_id, category_name FROM file_categories WHERE category_id=$1`

	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.ContainerID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select category: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) error {
	query := `INSERT INTO file_categories (category_id, creator_id, category_name) VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, c.ID, c.ContainerID, c.Name); err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByContainer(ctx context.Context, containerID string) ([]*models.Category, error) {
	query := `SELECT category_id, creator_id, category_name FROM file_categories
		WHERE creator_id=$1 ORDER BY category_name`

	rows, err := r.db.QueryContext(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ContainerID, &c.Name); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
