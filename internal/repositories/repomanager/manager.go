package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/mediaingest/internal/dbx"
	"github.com/dmitrijs2005/mediaingest/internal/repositories/assets"
	"github.com/dmitrijs2005/mediaingest/internal/repositories/categories"
	"github.com/dmitrijs2005/mediaingest/internal/repositories/folders"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Categories(db dbx.DBTX) categories.Repository
	Folders(db dbx.DBTX) folders.Repository
	Assets(db dbx.DBTX) assets.Repository
}
