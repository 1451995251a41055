// Package pgstore provides a PostgreSQL implementation of cases.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/pleura/internal/audit"
	"github.com/linnemanlabs/pleura/internal/cases"
)

var tracer = otel.Tracer("github.com/linnemanlabs/pleura/internal/cases/pgstore")

//go:embed schema.sql
var schema string

// Store persists case documents in PostgreSQL. Each case is one row keyed by
// id holding the full document as JSONB next to the indexed columns.
type Store struct {
	pool *pgxpool.Pool
}

var _ cases.Store = (*Store)(nil)

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const caseColumns = `id, owner_id, image_filename, created_at, doc`

// Insert adds a new case row. An existing id yields cases.ErrConflict.
func (s *Store) Insert(ctx context.Context, doc cases.Document) error {
	ctx, span := startSpan(ctx, "pgstore.Insert", "INSERT")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.OwnerID, doc.ImageFilename, doc.CreatedAt, string(doc.Body),
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert case: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return cases.ErrConflict
	}
	return nil
}

// Get retrieves a case row by id.
func (s *Store) Get(ctx context.Context, id string) (cases.Document, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	var d cases.Document
	err := s.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id).
		Scan(&d.ID, &d.OwnerID, &d.ImageFilename, &d.CreatedAt, &d.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return cases.Document{}, false, nil
	}
	if err != nil {
		return cases.Document{}, false, fail(span, fmt.Errorf("get case: %w", err))
	}
	return d, true, nil
}

// Replace overwrites the document of an existing row. The id, owner and
// creation time are never changed.
func (s *Store) Replace(ctx context.Context, doc cases.Document) error {
	ctx, span := startSpan(ctx, "pgstore.Replace", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `
		UPDATE cases SET doc = $2::jsonb, image_filename = $3
		WHERE id = $1`,
		doc.ID, string(doc.Body), doc.ImageFilename,
	)
	if err != nil {
		return fail(span, fmt.Errorf("replace case: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return cases.ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's rows newest first. An empty ownerID lists
// every row.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]cases.Document, error) {
	ctx, span := startSpan(ctx, "pgstore.ListByOwner", "SELECT")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("list cases: %w", err))
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cases.Document, error) {
		var d cases.Document
		err := row.Scan(&d.ID, &d.OwnerID, &d.ImageFilename, &d.CreatedAt, &d.Body)
		return d, err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan cases: %w", err))
	}
	return docs, nil
}

// RecentIDs returns up to limit ids, most recently created first.
func (s *Store) RecentIDs(ctx context.Context, limit int) ([]string, error) {
	ctx, span := startSpan(ctx, "pgstore.RecentIDs", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id FROM cases ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("recent case ids: %w", err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan case ids: %w", err))
	}
	return ids, nil
}

// UpsertClinician creates or updates a clinician profile.
func (s *Store) UpsertClinician(ctx context.Context, c *cases.Clinician) error {
	ctx, span := startSpan(ctx, "pgstore.UpsertClinician", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clinicians (id, email, name, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.Email, c.Name, c.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert clinician: %w", err))
	}
	return nil
}

// Clinician loads a clinician profile.
func (s *Store) Clinician(ctx context.Context, id string) (*cases.Clinician, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Clinician", "SELECT")
	defer span.End()

	var c cases.Clinician
	err := s.pool.QueryRow(ctx, `SELECT id, email, name, updated_at FROM clinicians WHERE id = $1`, id).
		Scan(&c.ID, &c.Email, &c.Name, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("get clinician: %w", err))
	}
	return &c, true, nil
}

// AppendAudit inserts one audit_log row. Replays of the same event id are
// ignored.
func (s *Store) AppendAudit(ctx context.Context, ev *audit.Event) error {
	ctx, span := startSpan(ctx, "pgstore.AppendAudit", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, event, case_id, actor_email, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Name), ev.CaseID, ev.ActorEmail, ev.Detail, ev.At,
	)
	if err != nil {
		return fail(span, fmt.Errorf("append audit: %w", err))
	}
	return nil
}

// AuditTrail returns the audit events for a case in order.
func (s *Store) AuditTrail(ctx context.Context, caseID string) ([]audit.Event, error) {
	ctx, span := startSpan(ctx, "pgstore.AuditTrail", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT id, event, case_id, actor_email, detail, at
		FROM audit_log WHERE case_id = $1 ORDER BY at, id`, caseID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("audit trail: %w", err))
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			ev   audit.Event
			name string
		)
		err := row.Scan(&ev.ID, &name, &ev.CaseID, &ev.ActorEmail, &ev.Detail, &ev.At)
		ev.Name = audit.Name(name)
		return ev, err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan audit trail: %w", err))
	}
	return events, nil
}
