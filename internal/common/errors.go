// Package common defines sentinel errors shared by the ingestion pipeline,
// its storage layers and its outer surfaces. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Pre-flight rejection errors.
	ErrEmptySelection   = errors.New("no files selected")
	ErrCategoryRequired = errors.New("category required for ZIP files")
	ErrFileTooLarge     = errors.New("file exceeds size limit")

	// Transfer errors.
	ErrUploadCancelled = errors.New("upload cancelled")
	ErrInvalidArchive  = errors.New("invalid archive")

	// Batch-level errors.
	ErrBatchInProgress = errors.New("upload batch already in progress")
	ErrBatchFailed     = errors.New("upload batch failed")

	// Notification errors.
	ErrWebhookRejected = errors.New("webhook rejected notification")
)
