package assets

import (
	"context"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, a *models.Asset) error
	LinkToFolder(ctx context.Context, folderID, assetID string) error
	CountInFolder(ctx context.Context, folderID string) (int, error)
}
