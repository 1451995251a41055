// Package audit records who touched which case. Recording never blocks the
// caller: events are stamped and fanned out to writers on a detached goroutine.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Name identifies the kind of audited action.
type Name string

const (
	CaseViewed      Name = "CASE_VIEWED"
	CaseResolved    Name = "CASE_RESOLVED"
	ReportGenerated Name = "REPORT_GENERATED"
)

// Event is one audited action.
type Event struct {
	ID         string    `json:"id"`
	Name       Name      `json:"event"`
	CaseID     string    `json:"caseId"`
	ActorEmail string    `json:"actorEmail"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Writer persists or forwards audit events.
type Writer interface {
	// Name labels the writer in logs and metrics.
	Name() string
	Write(ctx context.Context, ev *Event) error
}

// Appender is satisfied by case stores that keep an audit table.
type Appender interface {
	AppendAudit(ctx context.Context, ev *Event) error
}

type storeWriter struct{ a Appender }

// StoreWriter adapts a store's audit table to a Writer.
func StoreWriter(a Appender) Writer { return storeWriter{a: a} }

func (storeWriter) Name() string { return "store" }

func (w storeWriter) Write(ctx context.Context, ev *Event) error { return w.a.AppendAudit(ctx, ev) }

// Metrics counts writer outcomes.
type Metrics struct {
	WritesTotal *prometheus.CounterVec
}

// NewMetrics registers and returns audit metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pleura_audit_writes_total",
			Help: "Audit event writes by writer and outcome.",
		}, []string{"writer", "outcome"}),
	}
	reg.MustRegister(m.WritesTotal)
	return m
}

func (m *Metrics) write(writer string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.WritesTotal.WithLabelValues(writer, outcome).Inc()
}

// Recorder fans events out to its writers in the background.
type Recorder struct {
	writers []Writer
	metrics *Metrics
	logger  log.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewRecorder returns a Recorder. metrics may be nil.
func NewRecorder(logger log.Logger, metrics *Metrics, writers ...Writer) *Recorder {
	if logger == nil {
		logger = log.Nop()
	}
	return &Recorder{
		writers: writers,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Record queues an event and returns immediately. Failures are logged and
// counted, never returned.
func (r *Recorder) Record(ctx context.Context, name Name, caseID, actorEmail, detail string) {
	ev := &Event{
		ID:         ulid.Make().String(),
		Name:       name,
		CaseID:     caseID,
		ActorEmail: actorEmail,
		Detail:     detail,
		At:         r.now().UTC(),
	}

	r.wg.Add(1)
	go r.dispatch(context.WithoutCancel(ctx), ev)
}

func (r *Recorder) dispatch(ctx context.Context, ev *Event) {
	defer r.wg.Done()

	if err := r.writeAll(ctx, ev); err != nil {
		r.logger.Error(ctx, err, "audit write failed",
			"event", ev.Name,
			"case_id", ev.CaseID,
		)
	}
}

// writeAll writes ev to every writer concurrently and returns the first
// failure. One writer failing does not stop the others; every outcome is
// counted per writer.
func (r *Recorder) writeAll(ctx context.Context, ev *Event) error {
	var g errgroup.Group
	for _, w := range r.writers {
		g.Go(func() error {
			err := w.Write(ctx, ev)
			r.metrics.write(w.Name(), err)
			if err != nil {
				return fmt.Errorf("%s: %w", w.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Wait blocks until every queued event has been dispatched.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
