package categories

import (
	"context"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	ListByContainer(ctx context.Context, containerID string) ([]*models.Category, error)
}
