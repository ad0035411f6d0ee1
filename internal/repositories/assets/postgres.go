package assets

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mediaingest/internal/dbx"
	"github.com/dmitrijs2005/mediaingest/internal/models"
)

// PostgresRepository stores uploaded file rows and their folder membership.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, a *models.Asset) error {
	query := `INSERT INTO files (id, creator_id, filename, storage_key, mime_type, file_size, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.ContainerID, a.Name, a.StorageKey, a.ContentType, a.Size, a.Checksum, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// LinkToFolder adds the asset to the folder. Linking twice is a no-op.
func (r *PostgresRepository) LinkToFolder(ctx context.Context, folderID, assetID string) error {
	query := `INSERT INTO file_folder_contents (folder_id, file_id) VALUES ($1, $2)
		ON CONFLICT (folder_id, file_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, folderID, assetID); err != nil {
		return fmt.Errorf("failed to link file to folder: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountInFolder(ctx context.Context, folderID string) (int, error) {
	query := `SELECT count(*) FROM file_folder_contents WHERE folder_id=$1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, folderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count folder contents: %w", err)
	}
	return n, nil
}
