// Package destination composes the human-readable label of where a batch
// landed, e.g. "Photos>June Shoot".
package destination

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
)

const (
	// FallbackLabel is used when neither category nor folder can be named.
	FallbackLabel = "All Files"

	FolderAll      = "all"
	FolderUnsorted = "unsorted"
)

// Catalog is the category/folder lookup the resolver depends on.
type Catalog interface {
	CategoryName(ctx context.Context, categoryID string) (string, error)
	FolderInfo(ctx context.Context, folderID string) (*models.Folder, error)
}

// IsRealFolder reports whether folderID names an actual folder rather than
// one of the "all"/"unsorted" sentinels.
func IsRealFolder(folderID string) bool {
	return folderID != "" && folderID != FolderAll && folderID != FolderUnsorted
}

// Result is the outcome of a best-effort lookup.
type Result struct {
	Value string
	Err   error
}

func ok(v string) Result { return Result{Value: v} }

func failed(err error) Result { return Result{Err: err} }

// Known reports whether the lookup produced a usable name.
func (r Result) Known() bool { return r.Err == nil && strings.TrimSpace(r.Value) != "" }

// Or returns the value when known, otherwise fallback.
func (r Result) Or(fallback string) string {
	if r.Known() {
		return r.Value
	}
	return fallback
}

// OrElse returns r when known, otherwise evaluates next.
func (r Result) OrElse(next func() Result) Result {
	if r.Known() {
		return r
	}
	return next()
}

type Resolver struct {
	catalog Catalog
	logger  logging.Logger
}

func NewResolver(catalog Catalog, logger logging.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve never fails: every lookup error degrades to "unknown" and the
// composition falls through to the next rule.
func (r *Resolver) Resolve(ctx context.Context, folderID, archiveCategoryID string) string {
	category := failed(nil)
	if archiveCategoryID != "" {
		category = r.lookupCategory(ctx, archiveCategoryID)
	}

	folder := failed(nil)
	if IsRealFolder(folderID) {
		info, err := r.catalog.FolderInfo(ctx, folderID)
		if err != nil {
			r.logger.Warn(ctx, "folder lookup failed", "folder", folderID, "error", err)
		} else {
			folder = ok(info.Name)
			category = category.OrElse(func() Result { return ok(info.CategoryName) })
		}
	}

	switch {
	case category.Known() && folder.Known():
		return category.Value + ">" + folder.Value
	case category.Known():
		return category.Value
	default:
		return folder.Or(FallbackLabel)
	}
}

func (r *Resolver) lookupCategory(ctx context.Context, id string) Result {
	name, err := r.catalog.CategoryName(ctx, id)
	if err != nil {
		r.logger.Warn(ctx, "category lookup failed", "category", id, "error", err)
		return failed(err)
	}
	return ok(name)
}
