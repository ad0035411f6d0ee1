// Package archive expands zip bundles into a freshly created folder and
// uploads every member through the shared transfer primitive.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/filex"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/cancel"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/transfer"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/validator"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/klauspost/compress/zip"
)

// inMemoryLimit is the largest member extracted into memory; bigger members
// are spooled to a temporary file.
const inMemoryLimit = 32 << 20

// Transferer is the transfer primitive shared with regular files.
type Transferer interface {
	Transfer(ctx context.Context, item transfer.Item, obs transfer.Observer) (string, bool)
	MaxSizeBytes() int64
}

// FolderCreator creates the sub-collection that holds an archive's members.
type FolderCreator interface {
	CreateFolder(ctx context.Context, containerID, categoryID, name string) (*models.Folder, error)
}

// Observer is a transfer observer that can also start tracking new names.
type Observer interface {
	transfer.Observer
	Track(name string)
}

// Options carries the upload target of one archive.
type Options struct {
	ContainerID string
	// FolderID is the folder the user was browsing; members always land in
	// the new sub-collection.
	FolderID   string
	CategoryID string
	Observer   Observer
}

type Expander struct {
	transferer Transferer
	folders    FolderCreator
	registry   *cancel.Registry
	logger     logging.Logger
}

func NewExpander(t Transferer, folders FolderCreator, registry *cancel.Registry, logger logging.Logger) *Expander {
	return &Expander{
		transferer: t,
		folders:    folders,
		registry:   registry,
		logger:     logger,
	}
}

// EntryKey is the tracker name of member inside the archive tracked as
// archiveKey.
func EntryKey(archiveKey, member string) string {
	return validator.ArchiveBaseName(archiveKey) + "/" + member
}

// ProcessZipFile uploads every member of file and returns the produced asset
// ids in table-of-contents order. Member failures are recorded on the
// member's status and never stop sibling members. The archive's own entry
// moves to Complete once all members were attempted, or to Error when the
// bundle could not be opened, no folder could be created or no member
// succeeded.
func (e *Expander) ProcessZipFile(ctx context.Context, file models.RawFile, opts Options) []string {
	obs := opts.Observer
	key := file.TrackKey()
	log := e.logger.With("archive", key, "container", opts.ContainerID)

	if opts.CategoryID == "" {
		obs.Status(key, models.StateError, common.ErrCategoryRequired.Error())
		return nil
	}

	ctx, release := e.registry.Register(ctx, key)
	defer release()

	obs.Status(key, models.StateUploading, "")

	content, err := file.Open()
	if err != nil {
		e.fail(ctx, obs, key, fmt.Errorf("open archive: %w", err))
		return nil
	}
	defer content.Close()

	zr, err := zip.NewReader(content, file.Size)
	if err != nil {
		e.fail(ctx, obs, key, fmt.Errorf("%w: %v", common.ErrInvalidArchive, err))
		return nil
	}

	members := Members(zr)
	if len(members) == 0 {
		e.fail(ctx, obs, key, fmt.Errorf("%w: archive contains no files", common.ErrInvalidArchive))
		return nil
	}

	folderName := validator.ArchiveBaseName(file.Name)
	folder, err := e.folders.CreateFolder(ctx, opts.ContainerID, opts.CategoryID, folderName)
	if err != nil {
		e.fail(ctx, obs, key, fmt.Errorf("create folder %q: %w", folderName, err))
		return nil
	}
	log.Info(ctx, "archive folder created", "folder_id", folder.ID, "members", len(members))

	ids := make([]string, 0, len(members))
	for i, m := range members {
		if ctx.Err() != nil {
			break
		}
		if id, ok := e.processMember(ctx, key, m, folder.ID, opts); ok {
			ids = append(ids, id)
		}
		obs.Progress(key, float64(i+1)/float64(len(members))*100)
	}

	if errors.Is(context.Cause(ctx), common.ErrUploadCancelled) {
		obs.Status(key, models.StateError, transfer.CancelledMessage)
		return ids
	}
	if len(ids) == 0 {
		e.fail(ctx, obs, key, errors.New("no files could be extracted"))
		return nil
	}

	obs.Status(key, models.StateProcessing, "")
	obs.Status(key, models.StateComplete, "")
	log.Info(ctx, "archive processed", "uploaded", len(ids), "members", len(members))
	return ids
}

func (e *Expander) processMember(ctx context.Context, archiveKey string, m *zip.File, folderID string, opts Options) (string, bool) {
	obs := opts.Observer
	key := EntryKey(archiveKey, m.Name)
	obs.Track(key)

	if exceedsLimit(m.UncompressedSize64, e.transferer.MaxSizeBytes()) {
		obs.Status(key, models.StateError, common.ErrFileTooLarge.Error())
		return "", false
	}

	raw, cleanup, err := e.extract(m)
	if err != nil {
		e.logger.Error(ctx, "extract failed", "archive", archiveKey, "member", m.Name, "error", err)
		obs.Status(key, models.StateError, fmt.Sprintf("Extract failed: %v", err))
		return "", false
	}
	defer cleanup()

	return e.transferer.Transfer(ctx, transfer.Item{
		Key:         key,
		File:        raw,
		ContainerID: opts.ContainerID,
		FolderID:    folderID,
	}, obs)
}

// exceedsLimit compares a declared member size against the ceiling without
// narrowing it to int64.
func exceedsLimit(size uint64, limit int64) bool {
	if limit < 0 {
		return true
	}
	return size > uint64(limit)
}

// extract decompresses m into memory or a temporary file.
func (e *Expander) extract(m *zip.File) (models.RawFile, func(), error) {
	name := path.Base(m.Name)

	rc, err := m.Open()
	if err != nil {
		return models.RawFile{}, nil, err
	}
	defer rc.Close()

	if m.UncompressedSize64 <= inMemoryLimit {
		data, err := io.ReadAll(rc)
		if err != nil {
			return models.RawFile{}, nil, err
		}
		return models.BytesFile(name, data), func() {}, nil
	}

	tmpPath, cleanup, err := filex.Spool("", "mediaingest-*", rc)
	if err != nil {
		return models.RawFile{}, nil, err
	}

	raw, err := models.LocalFile(name, tmpPath)
	if err != nil {
		cleanup()
		return models.RawFile{}, nil, err
	}
	return raw, cleanup, nil
}

func (e *Expander) fail(ctx context.Context, obs Observer, name string, err error) {
	msg := err.Error()
	if errors.Is(context.Cause(ctx), common.ErrUploadCancelled) {
		msg = transfer.CancelledMessage
	}
	e.logger.Error(ctx, "archive failed", "archive", name, "error", err)
	obs.Status(name, models.StateError, msg)
}

// Members returns the uploadable members of zr in table-of-contents order.
// Directories, macOS resource forks and hidden files are skipped.
func Members(zr *zip.Reader) []*zip.File {
	out := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		out = append(out, f)
	}
	return out
}
