package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/archive"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/cancel"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/destination"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/progress"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/transfer"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/validator"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/google/uuid"
)

// UnknownActor identifies uploads whose caller supplied no identity.
const UnknownActor = "unknown@email.com"

type RegularTransferer interface {
	ProcessRegularFile(ctx context.Context, file models.RawFile, containerID, folderID string, obs transfer.Observer) (string, bool)
}

type ArchiveProcessor interface {
	ProcessZipFile(ctx context.Context, file models.RawFile, opts archive.Options) []string
}

type DestinationResolver interface {
	Resolve(ctx context.Context, folderID, archiveCategoryID string) string
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Status is the live view of the service served to pollers.
type Status struct {
	FileStatuses    []models.FileStatus `json:"fileStatuses" msgpack:"fileStatuses"`
	OverallProgress float64             `json:"overallProgress" msgpack:"overallProgress"`
	Active          bool                `json:"active" msgpack:"active"`
	Result          *models.BatchResult `json:"result,omitempty" msgpack:"result,omitempty"`
}

type Service struct {
	tracker      *progress.Tracker
	registry     *cancel.Registry
	regular      RegularTransferer
	archives     ArchiveProcessor
	resolver     DestinationResolver
	notifier     Notifier
	logger       logging.Logger
	maxSizeBytes int64
	now          func() time.Time

	mu          sync.Mutex
	active      bool
	cancelBatch context.CancelCauseFunc
	last        *models.BatchResult
}

func NewService(tracker *progress.Tracker, registry *cancel.Registry, regular RegularTransferer,
	archives ArchiveProcessor, resolver DestinationResolver, notifier Notifier,
	logger logging.Logger, maxSizeBytes int64) *Service {
	return &Service{
		tracker:      tracker,
		registry:     registry,
		regular:      regular,
		archives:     archives,
		resolver:     resolver,
		notifier:     notifier,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		now:          time.Now,
	}
}

// Tracker exposes the progress tracker for subscribers.
func (s *Service) Tracker() *progress.Tracker { return s.tracker }

// HandleFileChange runs one batch to completion. Pre-flight rejections
// (empty selection, archives without a category, a batch already running)
// are returned before any state changes. Per-file failures are reported in
// the result's statuses; only batch-level failures return an error, wrapped
// in common.ErrBatchFailed, alongside the partial result.
func (s *Service) HandleFileChange(ctx context.Context, selection []models.RawFile, target models.UploadTarget) (*models.BatchResult, error) {
	if err := preflight(selection, target); err != nil {
		return nil, err
	}
	ctx, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.run(ctx, selection, target)
	s.release(res)
	return res, err
}

// Start is HandleFileChange in the background. Pre-flight errors are
// returned synchronously; done, when non-nil, receives the outcome.
func (s *Service) Start(ctx context.Context, selection []models.RawFile, target models.UploadTarget,
	done func(*models.BatchResult, error)) error {
	if err := preflight(selection, target); err != nil {
		return err
	}
	ctx, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	go func() {
		res, err := s.run(ctx, selection, target)
		s.release(res)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

// CancelUpload aborts the named in-flight transfer. An empty name cancels
// every transfer and stops the running batch; files not yet started end in
// Error with the cancellation message. It returns the number of aborted
// transfers.
func (s *Service) CancelUpload(name string) int {
	n := s.registry.HandleCancelUpload(name)
	if name == "" {
		s.mu.Lock()
		if s.cancelBatch != nil {
			s.cancelBatch(common.ErrUploadCancelled)
		}
		s.mu.Unlock()
	}
	return n
}

// Snapshot returns the current statuses, whether a batch is running and the
// result of the latest finished batch.
func (s *Service) Snapshot() Status {
	snap := s.tracker.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		FileStatuses:    snap.Files,
		OverallProgress: snap.Overall,
		Active:          s.active,
		Result:          s.last,
	}
}

// Active reports whether a batch is running.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func preflight(selection []models.RawFile, target models.UploadTarget) error {
	if len(selection) == 0 {
		return common.ErrEmptySelection
	}
	if target.ArchiveCategoryID != "" {
		return nil
	}
	for _, f := range selection {
		if validator.IsArchive(f.Name) {
			return common.ErrCategoryRequired
		}
	}
	return nil
}

// acquire marks a batch active and returns its context. CancelUpload("")
// reaches the batch as soon as acquire returns.
func (s *Service) acquire(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil, common.ErrBatchInProgress
	}
	ctx, cancelBatch := context.WithCancelCause(parent)
	s.active = true
	s.cancelBatch = cancelBatch
	s.last = nil
	return ctx, nil
}

func (s *Service) release(res *models.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBatch != nil {
		s.cancelBatch(nil)
	}
	s.active = false
	s.cancelBatch = nil
	s.last = res
}

type job struct {
	file    models.RawFile
	archive bool
}

func (s *Service) run(ctx context.Context, selection []models.RawFile, target models.UploadTarget) (*models.BatchResult, error) {
	log := s.logger.With("batch", uuid.NewString(), "container", target.ContainerID)

	s.registry.Clear()
	s.tracker.Reset(nil)

	vr := validator.ValidateFiles(selection, s.maxSizeBytes)
	s.tracker.Reset(vr.InitialStatuses)

	res := &models.BatchResult{
		UploadedAssetIDs: []string{},
		Rejected:         validator.Warnings(vr),
	}
	for _, w := range res.Rejected {
		log.Warn(ctx, "file rejected", "reason", w)
	}

	if len(vr.InitialStatuses) == 0 {
		log.Info(ctx, "nothing to upload", "rejected", len(vr.Rejected))
		s.fill(res)
		return res, nil
	}

	log.Info(ctx, "batch started",
		"archives", len(vr.ValidFiles.ArchiveFiles),
		"files", len(vr.ValidFiles.RegularFiles),
		"rejected", len(vr.Rejected))

	ids, err := s.process(ctx, vr.ValidFiles, target, res)
	res.UploadedAssetIDs = append(res.UploadedAssetIDs, ids...)

	if err != nil {
		log.Error(ctx, "batch failed", "error", err, "uploaded", len(ids))
		s.fill(res)
		res.Failure = err.Error()
		res.Summary = "Upload failed"
		return res, fmt.Errorf("%w: %w", common.ErrBatchFailed, err)
	}

	if len(ids) > 0 {
		s.notify(ctx, log, ids, target)
	}

	s.fill(res)
	res.Summary = summary(res, vr.ValidFiles.ArchiveFiles)
	log.Info(ctx, "batch finished", "uploaded", len(ids), "summary", res.Summary)
	return res, nil
}

// process transfers archives first, then regular files, each group in
// selection order. A panic or a batch-level context error stops the loop;
// ids produced so far are kept.
func (s *Service) process(ctx context.Context, files models.ValidFiles, target models.UploadTarget,
	res *models.BatchResult) (ids []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during upload: %v", r)
		}
	}()

	jobs := make([]job, 0, len(files.ArchiveFiles)+len(files.RegularFiles))
	for _, f := range files.ArchiveFiles {
		jobs = append(jobs, job{file: f, archive: true})
	}
	for _, f := range files.RegularFiles {
		jobs = append(jobs, job{file: f})
	}

	folderID := ""
	if destination.IsRealFolder(target.CurrentFolderID) {
		folderID = target.CurrentFolderID
	}

	for i, j := range jobs {
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			if errors.Is(cause, common.ErrUploadCancelled) {
				for _, rest := range jobs[i:] {
					s.tracker.Status(rest.file.TrackKey(), models.StateError, transfer.CancelledMessage)
				}
				return ids, nil
			}
			return ids, cause
		}

		if j.archive {
			got := s.archives.ProcessZipFile(ctx, j.file, archive.Options{
				ContainerID: target.ContainerID,
				FolderID:    target.CurrentFolderID,
				CategoryID:  target.ArchiveCategoryID,
				Observer:    s.tracker,
			})
			ids = append(ids, got...)
			if len(got) > 0 {
				res.Notices = append(res.Notices,
					fmt.Sprintf("Created folder \"%s\" with %d files", validator.ArchiveBaseName(j.file.Name), len(got)))
			}
			continue
		}

		if id, ok := s.regular.ProcessRegularFile(ctx, j.file, target.ContainerID, folderID, s.tracker); ok {
			ids = append(ids, id)
		}
	}

	if ctx.Err() != nil && !errors.Is(context.Cause(ctx), common.ErrUploadCancelled) {
		return ids, context.Cause(ctx)
	}
	return ids, nil
}

func (s *Service) notify(ctx context.Context, log logging.Logger, ids []string, target models.UploadTarget) {
	actor := target.Actor
	if actor == "" {
		actor = UnknownActor
	}

	n := models.Notification{
		Email:         actor,
		Destination:   s.resolver.Resolve(ctx, target.CurrentFolderID, target.ArchiveCategoryID),
		MediaQuantity: len(ids),
		TimeUploaded:  s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		log.Error(ctx, "completion notification failed", "error", err, "destination", n.Destination)
		return
	}
	log.Info(ctx, "completion notification sent", "destination", n.Destination, "count", n.MediaQuantity)
}

func (s *Service) fill(res *models.BatchResult) {
	snap := s.tracker.Snapshot()
	res.FileStatuses = snap.Files
	res.OverallProgress = snap.Overall
}

// summary renders the closing message from the number of completed files.
// Archive bundles themselves are not counted; their members are.
func summary(res *models.BatchResult, archives []models.RawFile) string {
	bundles := make(map[string]struct{}, len(archives))
	for _, a := range archives {
		bundles[a.TrackKey()] = struct{}{}
	}
	n := 0
	for _, st := range res.FileStatuses {
		if _, ok := bundles[st.Name]; !ok && st.State == models.StateComplete {
			n++
		}
	}

	switch {
	case n > 1:
		return fmt.Sprintf("%d files uploaded", n)
	case n == 1:
		return "1 file uploaded"
	case len(res.FileStatuses) > 0:
		return "Upload failed"
	}
	return ""
}
