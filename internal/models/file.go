// Package models defines the data shapes that flow through the ingestion
// pipeline: raw selections, per-file statuses, upload targets and the batch
// result handed back to callers.
package models

import (
	"bytes"
	"io"
	"os"
)

// Content is the readable body of a selected file. Both *os.File and
// multipart.File satisfy it; archives need ReaderAt for random access.
type Content interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// OpenFunc opens a fresh Content for a file. Each call must return a reader
// positioned at the start of the payload.
type OpenFunc func() (Content, error)

// RawFile is one handle of an UploadSelection as received from the caller.
type RawFile struct {
	Name string
	Size int64
	Open OpenFunc
	// Key addresses the file's status and cancel handle within a batch.
	// Validation assigns it; it is unique even when names repeat.
	Key string
}

// TrackKey returns Key, or Name when no key was assigned.
func (f RawFile) TrackKey() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

type bytesContent struct {
	*bytes.Reader
}

func (bytesContent) Close() error { return nil }

// BytesFile wraps an in-memory payload as a RawFile.
func BytesFile(name string, data []byte) RawFile {
	return RawFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (Content, error) {
			return bytesContent{bytes.NewReader(data)}, nil
		},
	}
}

// LocalFile stats path and returns a RawFile that opens it lazily.
// The returned name is the base name supplied by the caller.
func LocalFile(name, path string) (RawFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RawFile{}, err
	}
	return RawFile{
		Name: name,
		Size: info.Size(),
		Open: func() (Content, error) {
			return os.Open(path)
		},
	}, nil
}

// RejectedFile is a file dropped during validation together with the reason.
type RejectedFile struct {
	Name   string
	Size   int64
	Reason string
}

// ValidFiles holds the accepted part of a selection, partitioned by kind.
type ValidFiles struct {
	ArchiveFiles []RawFile
	RegularFiles []RawFile
}

// ValidationResult is computed once per selection and never mutated.
type ValidationResult struct {
	InitialStatuses []FileStatus
	ValidFiles      ValidFiles
	Rejected        []RejectedFile
}

// UploadTarget describes where uploaded assets attach.
type UploadTarget struct {
	// ContainerID is the owning asset space (creator).
	ContainerID string
	// CurrentFolderID is a folder id or one of the "all"/"unsorted" sentinels.
	CurrentFolderID string
	// ArchiveCategoryID is required whenever the selection contains archives.
	ArchiveCategoryID string
	// Actor identifies the uploader in the completion notification.
	Actor string
}
