package models

import "time"

// Category is a top-level classification of a container's files.
type Category struct {
	ID          string
	ContainerID string
	Name        string
}

// Folder groups files inside one category. Archive uploads create a new
// folder per archive.
type Folder struct {
	ID           string
	ContainerID  string
	CategoryID   string
	Name         string
	CategoryName string
	CreatedAt    time.Time
}

// Asset describes server-side metadata for one uploaded object. The bytes
// themselves live in object storage under StorageKey.
type Asset struct {
	ID          string
	ContainerID string
	// FolderID is empty for unfiled uploads.
	FolderID    string
	Name        string
	StorageKey  string
	ContentType string
	Size        int64
	// Checksum is the hex BLAKE2b-256 digest of the payload.
	Checksum  string
	CreatedAt time.Time
}

// Notification is the payload of the completion webhook.
type Notification struct {
	Email         string `json:"email"`
	Destination   string `json:"destination"`
	MediaQuantity int    `json:"media_quantity"`
	TimeUploaded  string `json:"time_uploaded"`
}

// UploadedPart identifies one chunk of a multipart transfer.
type UploadedPart struct {
	Number int32
	ETag   string
}
