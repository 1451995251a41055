package cases

import (
	"context"
	"time"

	"github.com/linnemanlabs/pleura/internal/audit"
)

// Document is a case as held by a backend: the denormalized columns used for
// indexing and authorization plus the full JSON body.
type Document struct {
	ID            string
	OwnerID       string
	ImageFilename string
	CreatedAt     time.Time
	Body          []byte
}

// Store is the persistence seam shared by the durable and in-process backends.
// Bodies are returned undecoded; the Repository sanitizes every read.
type Store interface {
	// Insert adds a new document. It returns ErrConflict if the id exists.
	Insert(ctx context.Context, doc Document) error

	// Get returns the document for id, or ok=false if there is none.
	Get(ctx context.Context, id string) (doc Document, ok bool, err error)

	// Replace overwrites an existing document. It returns ErrNotFound if the id
	// does not exist.
	Replace(ctx context.Context, doc Document) error

	// ListByOwner returns documents newest first. An empty ownerID lists all.
	ListByOwner(ctx context.Context, ownerID string) ([]Document, error)

	// RecentIDs returns up to limit ids, most recently created first.
	RecentIDs(ctx context.Context, limit int) ([]string, error)

	// UpsertClinician creates or updates a clinician profile.
	UpsertClinician(ctx context.Context, c *Clinician) error

	// AppendAudit persists one audit event.
	AppendAudit(ctx context.Context, ev *audit.Event) error
}
