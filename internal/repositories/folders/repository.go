package folders

import (
	"context"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	Create(ctx context.Context, f *models.Folder) error
}
