package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/linnemanlabs/pleura/internal/audit"
	"github.com/linnemanlabs/pleura/internal/cases"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func doc(id, owner string, at time.Time) cases.Document {
	return cases.Document{
		ID:        id,
		OwnerID:   owner,
		CreatedAt: at,
		Body:      []byte(fmt.Sprintf(`{"id":%q,"ownerId":%q}`, id, owner)),
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	in := doc("CXR-001", "dr-a", t0)
	in.ImageFilename = "chest.png"
	if err := s.Insert(ctx, in); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := s.Get(ctx, "CXR-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected document to be found")
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.Insert(ctx, doc("CXR-001", "dr-a", t0)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := s.Insert(ctx, doc("CXR-001", "dr-b", t0))
	if !errors.Is(err, cases.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	got, _, _ := s.Get(ctx, "CXR-001")
	if got.OwnerID != "dr-a" {
		t.Errorf("owner = %q, duplicate insert must not overwrite", got.OwnerID)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	in := doc("CXR-001", "dr-a", t0)
	if err := s.Insert(ctx, in); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	in.Body[0] = 'X'

	got, _, _ := s.Get(ctx, "CXR-001")
	if got.Body[0] != '{' {
		t.Fatal("store kept a reference to the caller's body")
	}
	got.Body[0] = 'Y'

	again, _, _ := s.Get(ctx, "CXR-001")
	if again.Body[0] != '{' {
		t.Fatal("Get returned a reference to the stored body")
	}
}

func TestStore_ReplaceMissing(t *testing.T) {
	t.Parallel()

	s := New()
	err := s.Replace(context.Background(), doc("CXR-404", "dr-a", t0))
	if !errors.Is(err, cases.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, ok, _ := s.Get(context.Background(), "CXR-404"); ok {
		t.Fatal("Replace must not create a document")
	}
}

func TestStore_ListByOwner(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for _, d := range []cases.Document{
		doc("CXR-001", "dr-a", t0),
		doc("CXR-002", "dr-b", t0.Add(time.Minute)),
		doc("CXR-003", "dr-a", t0.Add(2*time.Minute)),
		doc("CXR-004", "dr-a", t0.Add(2*time.Minute)),
	} {
		if err := s.Insert(ctx, d); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.ListByOwner(ctx, "dr-a")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if diff := cmp.Diff([]string{"CXR-004", "CXR-003", "CXR-001"}, ids(got)); diff != "" {
		t.Errorf("owner listing (-want +got):\n%s", diff)
	}

	all, err := s.ListByOwner(ctx, "")
	if err != nil {
		t.Fatalf("ListByOwner all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("unscoped listing = %d docs, want 4", len(all))
	}
}

func TestStore_RecentIDs(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := s.Insert(ctx, doc(fmt.Sprintf("CXR-%03d", i), "dr-a", t0.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.RecentIDs(ctx, 3)
	if err != nil {
		t.Fatalf("RecentIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"CXR-005", "CXR-004", "CXR-003"}, got); diff != "" {
		t.Errorf("RecentIDs (-want +got):\n%s", diff)
	}
}

func TestStore_ClinicianAndAudit(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.UpsertClinician(ctx, &cases.Clinician{ID: "dr-a", Name: "A"}); err != nil {
		t.Fatalf("UpsertClinician: %v", err)
	}
	if err := s.UpsertClinician(ctx, &cases.Clinician{ID: "dr-a", Name: "A. Jones"}); err != nil {
		t.Fatalf("UpsertClinician: %v", err)
	}
	c, ok := s.Clinician("dr-a")
	if !ok || c.Name != "A. Jones" {
		t.Errorf("clinician = %+v, %v", c, ok)
	}

	ev := &audit.Event{ID: "01J", Name: audit.CaseViewed, CaseID: "CXR-001"}
	if err := s.AppendAudit(ctx, ev); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if got := s.AuditEvents(); len(got) != 1 || got[0].CaseID != "CXR-001" {
		t.Errorf("audit = %+v", got)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("CXR-%03d", n)
			_ = s.Insert(ctx, doc(id, "dr-a", t0))
			_, _, _ = s.Get(ctx, id)
			_ = s.Replace(ctx, doc(id, "dr-a", t0))
			_, _ = s.ListByOwner(ctx, "dr-a")
		}(i)
	}
	wg.Wait()

	all, _ := s.ListByOwner(ctx, "")
	if len(all) != 50 {
		t.Errorf("documents = %d, want 50", len(all))
	}
}

func ids(docs []cases.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
