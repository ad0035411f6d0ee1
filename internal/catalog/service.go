// Package catalog exposes the category/folder catalog and the asset
// registry to the ingestion pipeline.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/dbx"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/dmitrijs2005/mediaingest/internal/repositories/repomanager"
	"github.com/google/uuid"
)

type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewService(db *sql.DB, rm repomanager.RepositoryManager) *Service {
	return &Service{db: db, repomanager: rm}
}

// CategoryName returns the display name of category id.
func (s *Service) CategoryName(ctx context.Context, id string) (string, error) {
	c, err := s.repomanager.Categories(s.db).GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

// FolderInfo returns folder id with its parent category name.
func (s *Service) FolderInfo(ctx context.Context, id string) (*models.Folder, error) {
	return s.repomanager.Folders(s.db).GetByID(ctx, id)
}

// CreateFolder creates a folder under categoryID. The category must belong
// to containerID.
func (s *Service) CreateFolder(ctx context.Context, containerID, categoryID, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("folder name is empty")
	}

	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Folder, error) {
		cat, err := s.repomanager.Categories(tx).GetByID(ctx, categoryID)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", categoryID, err)
		}
		if cat.ContainerID != containerID {
			return nil, fmt.Errorf("category %s: %w", categoryID, common.ErrorNotFound)
		}

		f := &models.Folder{
			ID:           uuid.NewString(),
			ContainerID:  containerID,
			CategoryID:   categoryID,
			Name:         name,
			CategoryName: cat.Name,
		}
		if err := s.repomanager.Folders(tx).Create(ctx, f); err != nil {
			return nil, err
		}
		return f, nil
	})
}

// RegisterAsset inserts the asset row and, when FolderID is set, its folder
// membership in one transaction.
func (s *Service) RegisterAsset(ctx context.Context, a *models.Asset) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Assets(tx)
		if err := repo.Insert(ctx, a); err != nil {
			return err
		}
		if a.FolderID == "" {
			return nil
		}
		return repo.LinkToFolder(ctx, a.FolderID, a.ID)
	})
}

// FolderSize reports how many assets folder id holds.
func (s *Service) FolderSize(ctx context.Context, id string) (int, error) {
	return s.repomanager.Assets(s.db).CountInFolder(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, containerID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if containerID == "" || name == "" {
		return nil, errors.New("container and category name are required")
	}

	c := &models.Category{ID: uuid.NewString(), ContainerID: containerID, Name: name}
	if err := s.repomanager.Categories(s.db).Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, containerID string) ([]*models.Category, error) {
	return s.repomanager.Categories(s.db).ListByContainer(ctx, containerID)
}
