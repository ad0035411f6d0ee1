// Package transfer moves one file into object storage and registers it as
// an asset. Files below the chunk threshold go up in a single call; larger
// files are sent as sequential chunks with progress after each one.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/cryptox"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/cancel"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// CancelledMessage is the status message of a user-aborted transfer.
const CancelledMessage = "Upload cancelled"

// ObjectStore is the object transfer primitive.
type ObjectStore interface {
	NewKey(containerID, name string) string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, number int32, data []byte) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []models.UploadedPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Delete(ctx context.Context, key string) error
}

// AssetRegistry records an uploaded object as an asset.
type AssetRegistry interface {
	RegisterAsset(ctx context.Context, asset *models.Asset) error
}

// Observer receives per-file progress and state changes. The progress
// tracker implements it; keys are tracker names.
type Observer interface {
	Progress(name string, pct float64)
	Status(name string, state models.State, msg string)
}

// Item is one unit of work. Key addresses the tracker entry and the cancel
// handle; File.Name becomes the asset name.
type Item struct {
	Key         string
	File        models.RawFile
	ContainerID string
	FolderID    string
}

type Transferer struct {
	store        ObjectStore
	assets       AssetRegistry
	registry     *cancel.Registry
	logger       logging.Logger
	maxSizeBytes int64
	chunkSize    int64
}

func NewTransferer(store ObjectStore, assets AssetRegistry, registry *cancel.Registry,
	logger logging.Logger, maxSizeBytes, chunkSize int64) *Transferer {
	return &Transferer{
		store:        store,
		assets:       assets,
		registry:     registry,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		chunkSize:    chunkSize,
	}
}

// MaxSizeBytes is the per-file ceiling enforced before any transfer.
func (t *Transferer) MaxSizeBytes() int64 { return t.maxSizeBytes }

// ProcessRegularFile uploads one non-archive file keyed by its track key.
// It returns the new asset id, or false when the file was skipped or failed;
// failures are reported through obs and never returned.
func (t *Transferer) ProcessRegularFile(ctx context.Context, file models.RawFile,
	containerID, folderID string, obs Observer) (string, bool) {
	return t.Transfer(ctx, Item{Key: file.TrackKey(), File: file, ContainerID: containerID, FolderID: folderID}, obs)
}

// Transfer runs the shared transfer primitive for item.
func (t *Transferer) Transfer(ctx context.Context, item Item, obs Observer) (string, bool) {
	log := t.logger.With("file", item.Key, "container", item.ContainerID)

	if item.File.Size > t.maxSizeBytes {
		log.Warn(ctx, "skipping oversized file", "size", item.File.Size, "limit", t.maxSizeBytes)
		return "", false
	}

	ctx, release := t.registry.Register(ctx, item.Key)
	defer release()

	obs.Status(item.Key, models.StateUploading, "")

	asset, err := t.upload(ctx, item, obs)
	if err != nil {
		msg := t.failureMessage(ctx, err)
		log.Error(ctx, "upload failed", "error", err)
		obs.Status(item.Key, models.StateError, msg)
		return "", false
	}

	obs.Status(item.Key, models.StateComplete, "")
	log.Info(ctx, "file uploaded", "asset_id", asset.ID, "size", asset.Size, "content_type", asset.ContentType)
	return asset.ID, true
}

func (t *Transferer) failureMessage(ctx context.Context, err error) string {
	if errors.Is(err, common.ErrUploadCancelled) || errors.Is(context.Cause(ctx), common.ErrUploadCancelled) {
		return CancelledMessage
	}
	return fmt.Sprintf("Upload failed: %v", err)
}

func (t *Transferer) upload(ctx context.Context, item Item, obs Observer) (*models.Asset, error) {
	content, err := item.File.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", item.File.Name, err)
	}
	defer content.Close()

	contentType := sniff(content)
	key := t.store.NewKey(item.ContainerID, item.File.Name)

	hasher := cryptox.NewChecksum()
	body := io.TeeReader(content, hasher)

	if item.File.Size < t.chunkSize {
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
		if err := t.store.Put(ctx, key, body, item.File.Size, contentType); err != nil {
			return nil, fmt.Errorf("put object: %w", err)
		}
		obs.Progress(item.Key, 100)
	} else if err := t.uploadChunks(ctx, item, key, contentType, body, obs); err != nil {
		return nil, err
	}

	obs.Status(item.Key, models.StateProcessing, "")

	asset := &models.Asset{
		ID:          uuid.NewString(),
		ContainerID: item.ContainerID,
		FolderID:    item.FolderID,
		Name:        item.File.Name,
		StorageKey:  key,
		ContentType: contentType,
		Size:        item.File.Size,
		Checksum:    cryptox.Hex(hasher),
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.assets.RegisterAsset(ctx, asset); err != nil {
		if derr := t.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			t.logger.Warn(ctx, "orphaned object not removed", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("register asset: %w", err)
	}
	return asset, nil
}

// uploadChunks sends body in chunkSize pieces. Cancellation is honoured at
// every chunk boundary; any failure aborts the multipart upload.
func (t *Transferer) uploadChunks(ctx context.Context, item Item, key, contentType string, body io.Reader, obs Observer) (err error) {
	total := int((item.File.Size + t.chunkSize - 1) / t.chunkSize)

	uploadID, err := t.store.CreateMultipart(ctx, key, contentType)
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if aerr := t.store.AbortMultipart(context.WithoutCancel(ctx), key, uploadID); aerr != nil {
			t.logger.Warn(ctx, "abort multipart upload failed", "key", key, "error", aerr)
		}
	}()

	buf := make([]byte, t.chunkSize)
	parts := make([]models.UploadedPart, 0, total)

	for i := 0; i < total; i++ {
		if err := checkpoint(ctx); err != nil {
			return err
		}

		n, err := io.ReadFull(body, buf)
		if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && i == total-1) {
			return fmt.Errorf("read chunk %d: %w", i+1, err)
		}

		number := int32(i + 1)
		etag, err := t.store.UploadPart(ctx, key, uploadID, number, buf[:n])
		if err != nil {
			if cerr := checkpoint(ctx); cerr != nil {
				return cerr
			}
			return fmt.Errorf("upload chunk %d/%d: %w", number, total, err)
		}
		parts = append(parts, models.UploadedPart{Number: number, ETag: etag})

		pct := float64(i+1) / float64(total) * 100
		obs.Progress(item.Key, pct)
		t.logger.Debug(ctx, "chunk sent", "file", item.Key, "chunk", number, "total", total)
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}
	if err := t.store.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// checkpoint returns the cancellation cause once ctx is done.
func checkpoint(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}

func sniff(r io.ReaderAt) string {
	head := make([]byte, 3072)
	n, _ := r.ReadAt(head, 0)
	return mimetype.Detect(head[:n]).String()
}
