package workers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"
	"time"

	"media-vault/domain"
	"media-vault/domain/event"
	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
	"media-vault/mocks"
	"media-vault/queue"
	"media-vault/storage"
	"media-vault/validation"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type processorFixture struct {
	worker *ProcessorWorker
	repo   *storage.AttachmentRepository
	queue  *queue.BadgerQueue
	blobs  *mocks.MockBlobStore
	events chan event.LifecycleEvent
}

func newProcessorFixture(t *testing.T, ctrl *gomock.Controller, maxAttempts int) processorFixture {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	repo := storage.NewAttachmentRepository(db, log)
	jobQueue := queue.NewBadgerQueue(db, log, time.Minute)
	blobs := mocks.NewMockBlobStore(ctrl)
	events := make(chan event.LifecycleEvent, 16)

	scripts, err := validation.NewScriptScreener()
	require.NoError(t, err)
	pipeline := validation.NewPipeline(
		log,
		validation.NewImageValidator(log, 4096, 4096, scripts),
		validation.NewMediaValidator(log, mocks.NewMockMediaProber(ctrl), 600),
		validation.NewDocumentValidator(log, mocks.NewMockMalwareScanner(ctrl), false, scripts),
	)

	worker := NewProcessorWorker(log, jobQueue, repo, blobs, pipeline, events,
		200*time.Millisecond, 10*time.Millisecond, maxAttempts, 32<<20)

	return processorFixture{worker: worker, repo: repo, queue: jobQueue, blobs: blobs, events: events}
}

func uploadedAttachment(t *testing.T, f processorFixture) domain.Attachment {
	t.Helper()
	ctx := context.Background()

	att := domain.Attachment{
		ID:           uuid.New(),
		UploadID:     uuid.NewString(),
		OwnerID:      "user-1",
		FileName:     "holiday.png",
		DeclaredMime: mimetypes.ImagePNG,
		State:        domain.StatePending,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.repo.Create(ctx, &att))

	uploaded, swapped, err := f.repo.CASState(ctx, att.ID, domain.StatePending, domain.StateUploaded, func(a *domain.Attachment) {
		a.ObjectKey = "attachments/user-1/" + att.ID.String() + "/holiday.png"
		a.SizeBytes = 2048
	})
	require.NoError(t, err)
	require.True(t, swapped)

	require.NoError(t, f.queue.Enqueue(ctx, domain.NewJob(att.ID)))
	return uploaded
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 5), B: uint8(x + y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessorWorker_HappyPath(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)
	ctx := context.Background()

	att := uploadedAttachment(t, f)
	f.blobs.EXPECT().GetObject(gomock.Any(), att.ObjectKey, gomock.Any()).Return(testPNG(t), nil)

	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	ready, err := f.repo.Get(ctx, att.ID)
	req.NoError(err)
	req.Equal(domain.StateReady, ready.State)
	req.Equal(mimetypes.ImagePNG, ready.DetectedMime)
	req.Equal(mimetypes.KindImage, ready.Kind)
	req.Equal(64, ready.Metadata.Width)
	req.NotEmpty(ready.ContentDigest)

	evt := <-f.events
	req.Equal("media.processed", evt.Name())
	req.Equal("user-1", evt.Owner())

	depth, err := f.queue.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestProcessorWorker_RejectsDisguisedExecutable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)
	ctx := context.Background()

	att := uploadedAttachment(t, f)

	// Declared image/png, bytes say Windows PE. Terminal rejection, no retry.
	payload := append([]byte{0x4D, 0x5A, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 256)...)
	f.blobs.EXPECT().GetObject(gomock.Any(), gomock.Any(), gomock.Any()).Return(payload, nil).Times(1)

	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	failed, err := f.repo.Get(ctx, att.ID)
	req.NoError(err)
	req.Equal(domain.StateFailed, failed.State)
	req.Contains(failed.FailureReason, "executable content")

	evt := <-f.events
	req.Equal("media.failed", evt.Name())

	depth, err := f.queue.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestProcessorWorker_RedeliveryOfFinishedJobAcks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)
	ctx := context.Background()

	att := uploadedAttachment(t, f)

	// Drive the record to READY out-of-band, as a prior delivery would have.
	_, swapped, err := f.repo.CASState(ctx, att.ID, domain.StateUploaded, domain.StateProcessing, nil)
	req.NoError(err)
	req.True(swapped)
	_, swapped, err = f.repo.CASState(ctx, att.ID, domain.StateProcessing, domain.StateReady, nil)
	req.NoError(err)
	req.True(swapped)

	// No GetObject expectation: a terminal attachment is never re-validated.
	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	depth, err := f.queue.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestProcessorWorker_TransientErrorRetriesThenSucceeds(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)
	ctx := context.Background()

	att := uploadedAttachment(t, f)

	gomock.InOrder(
		f.blobs.EXPECT().GetObject(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperrors.Transient("get object", errors.New("connection reset"))),
		f.blobs.EXPECT().GetObject(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testPNG(t), nil),
	)

	// First delivery hits the outage and is nacked.
	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	// Redelivery after the backoff completes the job; the claim CAS finds the
	// record already PROCESSING and resumes it.
	handled, err = f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	ready, err := f.repo.Get(ctx, att.ID)
	req.NoError(err)
	req.Equal(domain.StateReady, ready.State)
}

func TestProcessorWorker_DeadLetterAfterExhaustedRetries(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 1)
	ctx := context.Background()

	att := uploadedAttachment(t, f)

	f.blobs.EXPECT().GetObject(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Transient("get object", errors.New("bucket gone"))).Times(1)

	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	// Dead-lettered as a FAILED variant operators can tell apart from a
	// content rejection.
	failed, err := f.repo.Get(ctx, att.ID)
	req.NoError(err)
	req.Equal(domain.StateFailed, failed.State)
	req.Contains(failed.FailureReason, "retries exhausted")

	evt := <-f.events
	req.Equal("media.failed", evt.Name())

	depth, err := f.queue.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestProcessorWorker_MissingAttachmentSettlesJob(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)
	ctx := context.Background()

	// A job whose record was already reaped.
	req.NoError(f.queue.Enqueue(ctx, domain.NewJob(uuid.New())))

	handled, err := f.worker.ProcessOne(ctx)
	req.NoError(err)
	req.True(handled)

	depth, err := f.queue.Depth()
	req.NoError(err)
	req.Zero(depth)
}

func TestProcessorWorker_IdleQueue(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)

	handled, err := f.worker.ProcessOne(context.Background())
	req.NoError(err)
	req.False(handled)
}

func TestProcessorWorker_BackoffToleratesUnreportedAttempt(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newProcessorFixture(t, ctrl, 3)

	// A backend that cannot report its delivery count hands over 0; the
	// first retry then waits the base delay instead of panicking.
	req.Equal(10*time.Millisecond, f.worker.backoffDelay(0))
	req.Equal(10*time.Millisecond, f.worker.backoffDelay(1))
	req.Equal(20*time.Millisecond, f.worker.backoffDelay(2))
	req.Equal(40*time.Millisecond, f.worker.backoffDelay(3))
}
