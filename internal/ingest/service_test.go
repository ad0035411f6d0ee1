package ingest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/archive"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/cancel"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/ingesttest"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/progress"
	"github.com/dmitrijs2005/mediaingest/internal/ingest/transfer"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeResolver struct {
	label string
	calls [][2]string
}

func (f *fakeResolver) Resolve(ctx context.Context, folderID, categoryID string) string {
	f.calls = append(f.calls, [2]string{folderID, categoryID})
	return f.label
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type panickingTransferer struct {
	RegularTransferer
	calls int
}

func (p *panickingTransferer) ProcessRegularFile(ctx context.Context, file models.RawFile, containerID, folderID string, obs transfer.Observer) (string, bool) {
	p.calls++
	if p.calls > 1 {
		panic("boom")
	}
	return p.RegularTransferer.ProcessRegularFile(ctx, file, containerID, folderID, obs)
}

type env struct {
	store    *ingesttest.Store
	assets   *ingesttest.Assets
	registry *cancel.Registry
	resolver *fakeResolver
	notifier *fakeNotifier
	tr       *transfer.Transferer
	svc      *Service
}

func newEnv(maxSize, chunk int64) *env {
	e := &env{
		store:    ingesttest.NewStore(),
		assets:   ingesttest.NewAssets(),
		registry: cancel.NewRegistry(),
		resolver: &fakeResolver{label: "Photos>Trip"},
		notifier: &fakeNotifier{},
	}
	e.tr = transfer.NewTransferer(e.store, e.assets, e.registry, logging.Discard(), maxSize, chunk)
	exp := archive.NewExpander(e.tr, e.assets, e.registry, logging.Discard())
	e.svc = NewService(progress.NewTracker(), e.registry, e.tr, exp, e.resolver, e.notifier, logging.Discard(), maxSize)
	e.svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func zipFile(t *testing.T, name string, members ...string) models.RawFile {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m)
		require.NoError(t, err)
		_, err = w.Write([]byte("body of " + m))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return models.BytesFile(name, buf.Bytes())
}

func statusOf(t *testing.T, res *models.BatchResult, name string) models.FileStatus {
	t.Helper()
	for _, s := range res.FileStatuses {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no status for %s", name)
	return models.FileStatus{}
}

var target = models.UploadTarget{ContainerID: "creator-1", CurrentFolderID: "unsorted"}

// -------- tests --------

func TestHandleFileChange_EmptySelection(t *testing.T) {
	e := newEnv(1<<20, 1024)
	res, err := e.svc.HandleFileChange(context.Background(), nil, target)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrEmptySelection)
	assert.False(t, e.svc.Active())
}

func TestHandleFileChange_ArchiveWithoutCategory(t *testing.T) {
	e := newEnv(1<<20, 1024)
	sel := []models.RawFile{
		models.BytesFile("a.txt", []byte("a")),
		zipFile(t, "trip.zip", "x.jpg"),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrCategoryRequired)
	assert.Zero(t, e.store.Len())
	assert.Empty(t, e.svc.Snapshot().FileStatuses)
	assert.Zero(t, e.notifier.count())
}

func TestHandleFileChange_RegularFilesRoundTrip(t *testing.T) {
	e := newEnv(1<<20, 1024)
	sel := []models.RawFile{
		models.BytesFile("a.txt", []byte("a")),
		models.BytesFile("b.txt", []byte("bb")),
		models.BytesFile("c.txt", []byte("ccc")),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	require.NoError(t, err)

	assert.Len(t, res.UploadedAssetIDs, 3)
	assert.Equal(t, float64(100), res.OverallProgress)
	assert.Equal(t, "3 files uploaded", res.Summary)
	assert.Empty(t, res.Failure)
	for _, s := range res.FileStatuses {
		assert.Equal(t, models.StateComplete, s.State)
	}
	for _, a := range e.assets.Assets() {
		assert.Empty(t, a.FolderID, "unsorted leaves files unfiled")
	}

	require.Len(t, e.notifier.sent, 1)
	n := e.notifier.sent[0]
	assert.Equal(t, UnknownActor, n.Email)
	assert.Equal(t, "Photos>Trip", n.Destination)
	assert.Equal(t, 3, n.MediaQuantity)
	assert.Equal(t, "2025-03-01T12:00:00Z", n.TimeUploaded)
	assert.Equal(t, [][2]string{{"unsorted", ""}}, e.resolver.calls)
}

func TestHandleFileChange_SingleFileSummaryAndFolderLink(t *testing.T) {
	e := newEnv(1<<20, 1024)
	tg := models.UploadTarget{ContainerID: "creator-1", CurrentFolderID: "folder-7", Actor: "ann@example.com"}

	res, err := e.svc.HandleFileChange(context.Background(), []models.RawFile{models.BytesFile("a.txt", []byte("a"))}, tg)
	require.NoError(t, err)
	assert.Equal(t, "1 file uploaded", res.Summary)
	assert.Equal(t, "folder-7", e.assets.Assets()[0].FolderID)
	assert.Equal(t, "ann@example.com", e.notifier.sent[0].Email)
}

func TestHandleFileChange_OversizedRejected(t *testing.T) {
	e := newEnv(4, 1024)
	sel := []models.RawFile{
		models.BytesFile("ok.txt", []byte("ok")),
		models.BytesFile("big.txt", []byte("far too big")),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	require.NoError(t, err)
	assert.Len(t, res.UploadedAssetIDs, 1)
	require.Len(t, res.FileStatuses, 1)
	assert.Equal(t, "ok.txt", res.FileStatuses[0].Name)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0], "big.txt exceeds the")
}

func TestHandleFileChange_AllRejected(t *testing.T) {
	e := newEnv(1, 1024)
	res, err := e.svc.HandleFileChange(context.Background(), []models.RawFile{models.BytesFile("big.txt", []byte("big"))}, target)
	require.NoError(t, err)
	assert.Empty(t, res.UploadedAssetIDs)
	assert.Empty(t, res.FileStatuses)
	assert.Empty(t, res.Summary)
	assert.Zero(t, e.notifier.count())
	assert.Zero(t, e.store.Len())
}

func TestHandleFileChange_ArchivesBeforeRegularFiles(t *testing.T) {
	e := newEnv(1<<20, 1024)
	tg := target
	tg.ArchiveCategoryID = "cat-1"
	sel := []models.RawFile{
		models.BytesFile("first.txt", []byte("regular")),
		zipFile(t, "trip.zip", "x.jpg", "y.jpg"),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, tg)
	require.NoError(t, err)
	require.Len(t, res.UploadedAssetIDs, 3)

	var names []string
	for _, a := range e.assets.Assets() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"x.jpg", "y.jpg", "first.txt"}, names)
	assert.Equal(t, []string{`Created folder "trip" with 2 files`}, res.Notices)
	assert.Equal(t, "3 files uploaded", res.Summary)
	assert.Equal(t, [][2]string{{"unsorted", "cat-1"}}, e.resolver.calls)
	assert.Equal(t, 3, e.notifier.sent[0].MediaQuantity)
}

func TestHandleFileChange_ArchiveMemberFailureIsPartial(t *testing.T) {
	e := newEnv(1<<20, 1024)
	e.assets.RegisterErr = func(a *models.Asset) error {
		if a.Name == "bad.jpg" {
			return errors.New("write failed")
		}
		return nil
	}
	tg := target
	tg.ArchiveCategoryID = "cat-1"

	res, err := e.svc.HandleFileChange(context.Background(), []models.RawFile{zipFile(t, "set.zip", "a.jpg", "bad.jpg", "c.jpg")}, tg)
	require.NoError(t, err)
	assert.Len(t, res.UploadedAssetIDs, 2)
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, models.StateError, statusOf(t, res, "set/bad.jpg").State)
	assert.Equal(t, "2 files uploaded", res.Summary)
	assert.Equal(t, 1, e.notifier.count())
}

func TestHandleFileChange_DuplicateNamesKeepOwnStatus(t *testing.T) {
	e := newEnv(1<<20, 1024)
	tg := target
	tg.ArchiveCategoryID = "cat-1"
	sel := []models.RawFile{
		models.BytesFile("a.jpg", []byte("first")),
		models.BytesFile("a.jpg", []byte("second")),
		zipFile(t, "trip.zip", "x.jpg"),
		zipFile(t, "trip.zip", "x.jpg"),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, tg)
	require.NoError(t, err)
	require.Len(t, res.UploadedAssetIDs, 4)

	var keys []string
	for _, s := range res.FileStatuses {
		keys = append(keys, s.Name)
		assert.Equal(t, models.StateComplete, s.State, s.Name)
	}
	assert.Equal(t, []string{"a.jpg", "a (2).jpg", "trip.zip", "trip (2).zip", "trip/x.jpg", "trip (2)/x.jpg"}, keys)
	assert.Equal(t, "4 files uploaded", res.Summary)
	assert.Equal(t, []string{`Created folder "trip" with 1 files`, `Created folder "trip" with 1 files`}, res.Notices)

	var names []string
	for _, a := range e.assets.Assets() {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"x.jpg", "x.jpg", "a.jpg", "a.jpg"}, names)
	require.Len(t, e.assets.Folders(), 2)
	for _, f := range e.assets.Folders() {
		assert.Equal(t, "trip", f.Name)
	}
}

func TestHandleFileChange_FailedArchiveHasNoFolderNotice(t *testing.T) {
	e := newEnv(1<<20, 1024)
	tg := target
	tg.ArchiveCategoryID = "cat-1"
	sel := []models.RawFile{
		models.BytesFile("broken.zip", []byte("not a zip")),
		zipFile(t, "empty.zip"),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, tg)
	require.NoError(t, err)
	assert.Empty(t, res.Notices)
	assert.Equal(t, models.StateError, statusOf(t, res, "broken.zip").State)
	assert.Equal(t, models.StateError, statusOf(t, res, "empty.zip").State)
	assert.Equal(t, "Upload failed", res.Summary)
}

func TestHandleFileChange_NotificationFailureIsIgnored(t *testing.T) {
	e := newEnv(1<<20, 1024)
	e.notifier.err = errors.New("webhook down")

	res, err := e.svc.HandleFileChange(context.Background(), []models.RawFile{models.BytesFile("a.txt", []byte("a"))}, target)
	require.NoError(t, err)
	assert.Len(t, res.UploadedAssetIDs, 1)
	assert.Equal(t, "1 file uploaded", res.Summary)
}

func TestHandleFileChange_NothingCompletedSkipsNotification(t *testing.T) {
	e := newEnv(1<<20, 1024)
	e.store.PutErr = errors.New("bucket missing")

	res, err := e.svc.HandleFileChange(context.Background(), []models.RawFile{models.BytesFile("a.txt", []byte("a"))}, target)
	require.NoError(t, err)
	assert.Empty(t, res.UploadedAssetIDs)
	assert.Equal(t, "Upload failed", res.Summary)
	assert.Zero(t, e.notifier.count())
}

func TestHandleFileChange_CancelOneMidChunk(t *testing.T) {
	e := newEnv(1<<20, 4)
	e.store.OnPart = func(_ string, n int32) {
		if n == 2 {
			e.svc.CancelUpload("big.bin")
		}
	}
	sel := []models.RawFile{
		models.BytesFile("big.bin", []byte("0123456789")),
		models.BytesFile("small.txt", []byte("ok")),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	require.NoError(t, err)

	big := statusOf(t, res, "big.bin")
	assert.Equal(t, models.StateError, big.State)
	assert.Equal(t, transfer.CancelledMessage, big.Error)
	assert.Equal(t, models.StateComplete, statusOf(t, res, "small.txt").State)
	assert.Len(t, res.UploadedAssetIDs, 1)
	assert.Zero(t, e.registry.Len())
}

func TestHandleFileChange_CancelAllStopsBatch(t *testing.T) {
	e := newEnv(1<<20, 1024)
	e.assets.RegisterErr = func(a *models.Asset) error {
		if a.Name == "a.txt" {
			e.svc.CancelUpload("")
		}
		return nil
	}
	sel := []models.RawFile{
		models.BytesFile("a.txt", []byte("a")),
		models.BytesFile("b.txt", []byte("b")),
		models.BytesFile("c.txt", []byte("c")),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	require.NoError(t, err)
	assert.Len(t, res.UploadedAssetIDs, 1)
	for _, name := range []string{"b.txt", "c.txt"} {
		s := statusOf(t, res, name)
		assert.Equal(t, models.StateError, s.State)
		assert.Equal(t, transfer.CancelledMessage, s.Error)
	}
	assert.Equal(t, 1, e.store.Len())
}

func TestHandleFileChange_PanicIsContained(t *testing.T) {
	e := newEnv(1<<20, 1024)
	e.svc.regular = &panickingTransferer{RegularTransferer: e.tr}
	sel := []models.RawFile{
		models.BytesFile("a.txt", []byte("a")),
		models.BytesFile("b.txt", []byte("b")),
	}

	res, err := e.svc.HandleFileChange(context.Background(), sel, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrBatchFailed)
	require.NotNil(t, res)
	assert.Len(t, res.UploadedAssetIDs, 1)
	assert.Contains(t, res.Failure, "boom")
	assert.Equal(t, "Upload failed", res.Summary)
	assert.Zero(t, e.notifier.count())
	assert.False(t, e.svc.Active())
}

func TestHandleFileChange_ParentContextCancelled(t *testing.T) {
	e := newEnv(1<<20, 1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.svc.HandleFileChange(ctx, []models.RawFile{models.BytesFile("a.txt", []byte("a"))}, target)
	assert.ErrorIs(t, err, common.ErrBatchFailed)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.UploadedAssetIDs)
}

func TestStart_RejectsConcurrentBatch(t *testing.T) {
	e := newEnv(1<<20, 1024)
	gate := make(chan struct{})
	e.assets.RegisterErr = func(*models.Asset) error {
		<-gate
		return nil
	}

	done := make(chan *models.BatchResult, 1)
	err := e.svc.Start(context.Background(), []models.RawFile{models.BytesFile("a.txt", []byte("a"))}, target,
		func(res *models.BatchResult, err error) { done <- res })
	require.NoError(t, err)
	assert.True(t, e.svc.Active())

	_, err = e.svc.HandleFileChange(context.Background(), []models.RawFile{models.BytesFile("b.txt", []byte("b"))}, target)
	assert.ErrorIs(t, err, common.ErrBatchInProgress)

	close(gate)
	res := <-done
	require.NotNil(t, res)
	assert.Len(t, res.UploadedAssetIDs, 1)

	assert.Eventually(t, func() bool { return !e.svc.Active() }, time.Second, 5*time.Millisecond)
	st := e.svc.Snapshot()
	assert.False(t, st.Active)
	require.NotNil(t, st.Result)
	assert.Equal(t, "1 file uploaded", st.Result.Summary)
}

func TestStart_CancelAllRightAfterStart(t *testing.T) {
	e := newEnv(1<<20, 4)
	sel := []models.RawFile{
		models.BytesFile("a.bin", bytes.Repeat([]byte("a"), 4096)),
		models.BytesFile("b.bin", bytes.Repeat([]byte("b"), 4096)),
	}

	done := make(chan *models.BatchResult, 1)
	require.NoError(t, e.svc.Start(context.Background(), sel, target,
		func(res *models.BatchResult, err error) { done <- res }))
	e.svc.CancelUpload("")

	res := <-done
	require.NotNil(t, res)
	assert.Empty(t, res.UploadedAssetIDs)
	for _, name := range []string{"a.bin", "b.bin"} {
		s := statusOf(t, res, name)
		assert.Equal(t, models.StateError, s.State)
		assert.Equal(t, transfer.CancelledMessage, s.Error)
	}
	assert.Zero(t, e.store.Len())
	assert.Zero(t, e.notifier.count())
}
