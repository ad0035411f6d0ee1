package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/dbx"
	"github.com/dmitrijs2005/mediaingest/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the folder together with its parent category name, or
// common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT f.folder_id, f.creator_id, f.category_id, f.folder_name, c.category_name, f.created_at
		FROM file_folders f
		JOIN file_categories c ON c.category_id = f.category_id
		WHERE f.folder_id=$1`

	f := &models.Folder{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&f.ID, &f.ContainerID, &f.CategoryID, &f.Name, &f.CategoryName, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	return f, nil
}

// Create inserts f and fills CreatedAt from the database.
func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) error {
	query := `INSERT INTO file_folders (folder_id, creator_id, category_id, folder_name)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, f.ID, f.ContainerID, f.CategoryID, f.Name).Scan(&f.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}
