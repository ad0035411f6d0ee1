// Package ingesttest provides in-memory collaborators for ingestion tests.
package ingesttest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

// Store is an in-memory object store. Hooks let tests fail or block
// individual calls.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string]map[int32][]byte
	seq     int

	Aborted []string
	Deleted []string

	PutErr      error
	PartErr     func(key string, number int32) error
	CompleteErr error
	OnPart      func(key string, number int32)
}

func NewStore() *Store {
	return &Store{
		objects: make(map[string][]byte),
		uploads: make(map[string]map[int32][]byte),
	}
}

func (s *Store) NewKey(containerID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("containers/%s/%d/%s", containerID, s.seq, name)
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *Store) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("upload-%d", s.seq)
	s.uploads[id] = make(map[int32][]byte)
	return id, nil
}

func (s *Store) UploadPart(ctx context.Context, key, uploadID string, number int32, data []byte) (string, error) {
	if s.OnPart != nil {
		s.OnPart(key, number)
	}
	if s.PartErr != nil {
		if err := s.PartErr(key, number); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	parts, ok := s.uploads[uploadID]
	if !ok {
		return "", errors.New("no such upload")
	}
	parts[number] = append([]byte(nil), data...)
	return fmt.Sprintf("etag-%d", number), nil
}

func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []models.UploadedPart) error {
	if s.CompleteErr != nil {
		return s.CompleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.uploads[uploadID]
	if !ok {
		return errors.New("no such upload")
	}
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(stored[p.Number])
	}
	s.objects[key] = buf.Bytes()
	delete(s.uploads, uploadID)
	return nil
}

func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, uploadID)
	s.Aborted = append(s.Aborted, key)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}

// Object returns the stored payload for key.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Assets records registered assets and created folders.
type Assets struct {
	mu      sync.Mutex
	assets  []*models.Asset
	folders []*models.Folder

	RegisterErr func(*models.Asset) error
	FolderErr   error
}

func NewAssets() *Assets { return &Assets{} }

func (a *Assets) RegisterAsset(ctx context.Context, asset *models.Asset) error {
	if a.RegisterErr != nil {
		if err := a.RegisterErr(asset); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assets = append(a.assets, asset)
	return nil
}

func (a *Assets) CreateFolder(ctx context.Context, containerID, categoryID, name string) (*models.Folder, error) {
	if a.FolderErr != nil {
		return nil, a.FolderErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	f := &models.Folder{
		ID:          fmt.Sprintf("folder-%d", len(a.folders)+1),
		ContainerID: containerID,
		CategoryID:  categoryID,
		Name:        name,
	}
	a.folders = append(a.folders, f)
	return f, nil
}

// Assets returns the registered assets in registration order.
func (a *Assets) Assets() []*models.Asset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.Asset(nil), a.assets...)
}

// Folders returns the created folders in creation order.
func (a *Assets) Folders() []*models.Folder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.Folder(nil), a.folders...)
}

// Event is one observer callback.
type Event struct {
	Name     string
	State    models.State
	Progress float64
	Message  string
	IsStatus bool
}

// Observer records every callback it receives.
type Observer struct {
	mu      sync.Mutex
	events  []Event
	tracked []string
}

func (o *Observer) Track(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracked = append(o.tracked, name)
}

// Tracked returns the names passed to Track in call order.
func (o *Observer) Tracked() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.tracked...)
}

func (o *Observer) Progress(name string, pct float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, Event{Name: name, Progress: pct})
}

func (o *Observer) Status(name string, state models.State, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, Event{Name: name, State: state, Message: msg, IsStatus: true})
}

// States returns the state sequence reported for name.
func (o *Observer) States(name string) []models.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.State
	for _, e := range o.events {
		if e.IsStatus && e.Name == name {
			out = append(out, e.State)
		}
	}
	return out
}

// ProgressValues returns the percentages reported for name.
func (o *Observer) ProgressValues(name string) []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []float64
	for _, e := range o.events {
		if !e.IsStatus && e.Name == name {
			out = append(out, e.Progress)
		}
	}
	return out
}

// LastMessage returns the message of the latest status event for name.
func (o *Observer) LastMessage(name string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.events) - 1; i >= 0; i-- {
		if e := o.events[i]; e.IsStatus && e.Name == name {
			return e.Message
		}
	}
	return ""
}

// Names returns every name seen, sorted.
func (o *Observer) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	seen := map[string]struct{}{}
	for _, e := range o.events {
		seen[e.Name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
