//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"media-vault/domain"
	"media-vault/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused. The supervisor owns restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without forcing a Name method on workers.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.LifecycleEvent) error
}

// Notifier delivers lifecycle events to the owner's live sessions only.
// There is deliberately no broadcast path.
type Notifier interface {
	Publish(ctx context.Context, ownerID string, e event.LifecycleEvent)
}

// BlobStore is the object-store collaborator. The pipeline only ever needs
// presign, head, bounded read and delete.
type BlobStore interface {
	PresignUpload(ctx context.Context, key string, declaredMime string, sizeBytes int64, ttl time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (size int64, exists bool, err error)
	// GetObject reads at most maxBytes; larger objects are a ValidationError.
	GetObject(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// AttachmentRepository is the record store. CASState is the single mutation
// primitive for lifecycle fields; no attachment-level lock exists anywhere.
type AttachmentRepository interface {
	Create(ctx context.Context, att *domain.Attachment) error
	Get(ctx context.Context, id uuid.UUID) (domain.Attachment, error)
	GetByUploadID(ctx context.Context, uploadID string) (domain.Attachment, error)
	// CASState transitions expected->next atomically, applying mutate to the
	// record inside the same transaction. swapped is false when the stored
	// state no longer matches expected; the current record is returned either way.
	CASState(ctx context.Context, id uuid.UUID, expected, next domain.State, mutate func(*domain.Attachment)) (att domain.Attachment, swapped bool, err error)
	ListByStateOlderThan(ctx context.Context, state domain.State, cutoff time.Time, limit int) ([]domain.Attachment, error)
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// Delivery couples a leased job with the backend receipt needed to settle it.
type Delivery struct {
	Job     domain.Job
	Receipt any
}

// Queue is an at-least-once delivery channel. The backend is chosen once at
// process start; nothing downstream may branch on which one is active.
type Queue interface {
	Enqueue(ctx context.Context, job domain.Job) error
	// Receive blocks up to maxWait and returns (nil, nil) when no job is ready.
	Receive(ctx context.Context, maxWait time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Nack(ctx context.Context, d *Delivery, retryAfter time.Duration) error
}

type ScanReport struct {
	Infected   bool
	Signatures []string
}

// MalwareScanner is optional capability; implementations return
// errors.ErrScannerUnavailable (wrapped) when the daemon cannot be reached.
type MalwareScanner interface {
	Scan(ctx context.Context, data []byte) (ScanReport, error)
}

type ProbeStream struct {
	CodecType string
	Width     int
	Height    int
}

type ProbeReport struct {
	Streams         []ProbeStream
	DurationSeconds float64
	BitRate         int64
	Format          string
}

// MediaProber is optional capability; implementations return
// errors.ErrProberUnavailable (wrapped) when the tool itself is missing or
// stalled, which is distinct from a decode failure on the file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (ProbeReport, error)
}
