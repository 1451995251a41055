// Package memstore provides an in-memory implementation of cases.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/pleura/internal/audit"
	"github.com/linnemanlabs/pleura/internal/cases"
)

// Store holds case documents in memory. It is the fallback backend when no
// database is configured; contents do not survive a restart.
type Store struct {
	mu         sync.RWMutex
	docs       map[string]cases.Document // case ID -> document
	seq        map[string]int            // case ID -> insertion order
	next       int
	clinicians map[string]cases.Clinician
	audit      []audit.Event
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		docs:       make(map[string]cases.Document),
		seq:        make(map[string]int),
		clinicians: make(map[string]cases.Clinician),
	}
}

var _ cases.Store = (*Store)(nil)

func copyDoc(d cases.Document) cases.Document {
	d.Body = append([]byte(nil), d.Body...)
	return d
}

// Insert stores a copy of doc. It returns cases.ErrConflict if the id exists.
func (s *Store) Insert(_ context.Context, doc cases.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return cases.ErrConflict
	}
	s.docs[doc.ID] = copyDoc(doc)
	s.seq[doc.ID] = s.next
	s.next++
	return nil
}

// Get retrieves a document by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (cases.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return cases.Document{}, false, nil
	}
	return copyDoc(d), true, nil
}

// Replace overwrites an existing document.
func (s *Store) Replace(_ context.Context, doc cases.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return cases.ErrNotFound
	}
	s.docs[doc.ID] = copyDoc(doc)
	return nil
}

// ListByOwner returns copies of the owner's documents, newest first. An empty
// ownerID lists every document.
func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]cases.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cases.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if ownerID != "" && d.OwnerID != ownerID {
			continue
		}
		out = append(out, copyDoc(d))
	}
	s.newestFirst(out)
	return out, nil
}

// RecentIDs returns up to limit ids, most recently created first.
func (s *Store) RecentIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]cases.Document, 0, len(s.docs))
	for _, d := range s.docs {
		all = append(all, d)
	}
	s.newestFirst(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	ids := make([]string, len(all))
	for i, d := range all {
		ids[i] = d.ID
	}
	return ids, nil
}

// newestFirst orders by creation time, breaking ties by insertion order.
// Callers must hold s.mu.
func (s *Store) newestFirst(docs []cases.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return s.seq[docs[i].ID] > s.seq[docs[j].ID]
	})
}

// UpsertClinician creates or replaces a clinician profile.
func (s *Store) UpsertClinician(_ context.Context, c *cases.Clinician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinicians[c.ID] = *c
	return nil
}

// Clinician returns a stored clinician profile.
func (s *Store) Clinician(id string) (cases.Clinician, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clinicians[id]
	return c, ok
}

// AppendAudit keeps a copy of the event.
func (s *Store) AppendAudit(_ context.Context, ev *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *ev)
	return nil
}

// AuditEvents returns a copy of the recorded audit trail in append order.
func (s *Store) AuditEvents() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.audit...)
}
