package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/linnemanlabs/go-core/xerrors"
)

const (
	// DefaultIDPrefix is the prefix of allocated case ids.
	DefaultIDPrefix = "CXR"

	// DefaultScanWindow caps how many recent ids are read to seed the counter.
	DefaultScanWindow = 200
)

// RepositoryOptions configures a Repository.
type RepositoryOptions struct {
	// IDPrefix is the PREFIX in PREFIX-NNN. Defaults to DefaultIDPrefix.
	IDPrefix string

	// ScanWindow bounds the counter sync scan. Defaults to DefaultScanWindow.
	ScanWindow int

	// AllowUnscopedList permits ListByOwner("") (dev/fallback mode only).
	AllowUnscopedList bool

	// Metrics is optional.
	Metrics *Metrics
}

// Repository owns case identity, decoding and the merge-update protocol on top
// of a Store. Construct one per process and share it.
type Repository struct {
	store    Store
	prefix   string
	window   int
	unscoped bool
	metrics  *Metrics
	syncMu   sync.Mutex
	synced   atomic.Bool
	counter  atomic.Int64
}

// NewRepository returns a Repository backed by store.
func NewRepository(store Store, opts RepositoryOptions) *Repository {
	if store == nil {
		panic(xerrors.New("case store is required"))
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = DefaultIDPrefix
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = DefaultScanWindow
	}
	return &Repository{
		store:    store,
		prefix:   opts.IDPrefix,
		window:   opts.ScanWindow,
		unscoped: opts.AllowUnscopedList,
		metrics:  opts.Metrics,
	}
}

// AllocateID draws the next case id. The counter is seeded once from the
// backend; after that it is the only source of truth, so a drawn number is
// never reused even if the create that follows fails.
func (r *Repository) AllocateID(ctx context.Context) (string, error) {
	if err := r.syncCounter(ctx); err != nil {
		return "", err
	}
	n := r.counter.Add(1)
	r.metrics.idAllocated()
	return formatID(r.prefix, n), nil
}

func (r *Repository) syncCounter(ctx context.Context) error {
	if r.synced.Load() {
		return nil
	}
	r.syncMu.Lock()
	defer r.syncMu.Unlock()
	if r.synced.Load() {
		return nil
	}

	ids, err := r.store.RecentIDs(ctx, r.window)
	if err != nil {
		return backendErr("sync id counter", err)
	}
	var highest int64
	for _, id := range ids {
		if n, ok := parseID(r.prefix, id); ok && n > highest {
			highest = n
		}
	}
	r.counter.Store(highest)
	r.synced.Store(true)
	return nil
}

func formatID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

func parseID(prefix, id string) (int64, bool) {
	suffix, ok := strings.CutPrefix(id, prefix+"-")
	if !ok || suffix == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Create persists a new case. The case must already carry an allocated id.
// c is normalized in place so it matches what later reads return.
func (r *Repository) Create(ctx context.Context, c *Case) error {
	if c.ID == "" {
		return fmt.Errorf("%w: case id is required", ErrInvalidInput)
	}
	raw, err := toDocument(c)
	if err != nil {
		return err
	}
	*c = *fromDocument(raw)
	doc, err := toDocument(c)
	if err != nil {
		return err
	}
	if err := r.store.Insert(ctx, doc); err != nil {
		return backendErr("insert case "+c.ID, err)
	}
	return nil
}

// Get loads and sanitizes a case.
func (r *Repository) Get(ctx context.Context, id string) (*Case, error) {
	doc, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, backendErr("get case "+id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return fromDocument(doc), nil
}

// ListByOwner returns the owner's cases, newest first. An empty ownerID is only
// allowed when the Repository was built with AllowUnscopedList.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*Case, error) {
	if ownerID == "" && !r.unscoped {
		return nil, fmt.Errorf("%w: unscoped listing is disabled", ErrUnauthorized)
	}
	docs, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, backendErr("list cases", err)
	}
	out := make([]*Case, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update reads the case, applies only the groups present in p and writes the
// whole merged record back. There is no version check: two concurrent updates
// of the same case race and the later write wins.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Case, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return current, nil
	}

	p.apply(current)

	doc, err := toDocument(current)
	if err != nil {
		return nil, err
	}
	if err := r.store.Replace(ctx, doc); err != nil {
		return nil, backendErr("update case "+id, err)
	}
	return current, nil
}

// UpsertClinician records a clinician profile.
func (r *Repository) UpsertClinician(ctx context.Context, c *Clinician) error {
	if err := r.store.UpsertClinician(ctx, c); err != nil {
		return backendErr("upsert clinician "+c.ID, err)
	}
	return nil
}

func toDocument(c *Case) (Document, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return Document{}, fmt.Errorf("marshal case %s: %w", c.ID, err)
	}
	return Document{
		ID:            c.ID,
		OwnerID:       c.OwnerID,
		ImageFilename: c.ImageFilename,
		CreatedAt:     c.CreatedAt.UTC(),
		Body:          body,
	}, nil
}

// fromDocument decodes a stored body. The row key and owner column win over
// whatever the body claims.
func fromDocument(d Document) *Case {
	c := DecodeCase(d.Body)
	c.ID = d.ID
	if d.OwnerID != "" {
		c.OwnerID = d.OwnerID
	}
	if c.CreatedAt.IsZero() && !d.CreatedAt.IsZero() {
		c.CreatedAt = d.CreatedAt.UTC()
	}
	return &c
}

// backendErr passes sentinel kinds through and marks anything else as a
// backend failure.
func backendErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrBackendUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
	}
}
