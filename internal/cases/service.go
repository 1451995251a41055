package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/pleura/internal/audit"
	"github.com/linnemanlabs/pleura/internal/similarity"
	"github.com/linnemanlabs/pleura/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/pleura/internal/cases")

// AuditSink receives audit events. Record must not block.
type AuditSink interface {
	Record(ctx context.Context, name audit.Name, caseID, actorEmail, detail string)
}

// ReportDrafter writes a narrative report for a case.
type ReportDrafter interface {
	Draft(ctx context.Context, c *Case) (string, error)
}

type nopSink struct{}

func (nopSink) Record(context.Context, audit.Name, string, string, string) {}

// NewCase is the input to CreateCase. A nil or empty Predictions map means
// inference has not finished yet. A present key with a nil value is rejected.
type NewCase struct {
	Patient       Patient
	Predictions   map[string]*float64
	ImageFilename string
}

// ServiceDeps wires a Service. Repository, Classifier and Matcher are required.
type ServiceDeps struct {
	Repository *Repository
	Classifier *triage.Classifier
	Matcher    *similarity.Matcher
	Audit      AuditSink
	Drafter    ReportDrafter
	Metrics    *Metrics
	Logger     log.Logger
}

// Service is the business boundary for case operations.
type Service struct {
	repo       *Repository
	classifier *triage.Classifier
	matcher    *similarity.Matcher
	audit      AuditSink
	drafter    ReportDrafter
	metrics    *Metrics
	logger     log.Logger
	now        func() time.Time
}

// NewService creates a new case service.
func NewService(d ServiceDeps) *Service {
	if d.Repository == nil || d.Classifier == nil || d.Matcher == nil {
		panic(xerrors.New("cases: repository, classifier and matcher are required"))
	}
	if d.Audit == nil {
		d.Audit = nopSink{}
	}
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	return &Service{
		repo:       d.Repository,
		classifier: d.Classifier,
		matcher:    d.Matcher,
		audit:      d.Audit,
		drafter:    d.Drafter,
		metrics:    d.Metrics,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// ReportingEnabled reports whether a drafter is configured.
func (s *Service) ReportingEnabled() bool { return s.drafter != nil }

// CreateCase classifies the supplied predictions, allocates an id and
// persists the case. It has no side effect beyond the repository write.
func (s *Service) CreateCase(ctx context.Context, actor Actor, in NewCase) (id string, err error) {
	ctx, span := tracer.Start(ctx, "cases.CreateCase")
	defer func() { endSpan(span, err) }()

	if actor.ID == "" {
		return "", ErrUnauthorized
	}

	c := &Case{
		OwnerID:       actor.ID,
		Patient:       in.Patient,
		ImageFilename: in.ImageFilename,
	}

	if len(in.Predictions) > 0 {
		p, err := triage.ParsePredictions(in.Predictions)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		a := s.classifier.Classify(p)
		c.Predictions = &p
		c.Triage = &a
	}

	id, err = s.repo.AllocateID(ctx)
	if err != nil {
		return "", err
	}
	c.ID = id
	c.CreatedAt = s.now().UTC()
	span.SetAttributes(attribute.String("pleura.case.id", id))

	if err := s.repo.Create(ctx, c); err != nil {
		return "", err
	}

	level := ""
	if c.Triage != nil {
		level = string(c.Triage.Level)
	}
	s.metrics.created(level)
	s.logger.Info(ctx, "case created", "case_id", id, "owner_id", actor.ID, "level", level)

	return id, nil
}

// FetchCase loads a case for its owner. An unresolved case with predictions
// and no cached match is compared against the owner's other open cases first;
// a match is persisted before returning. Failing to fill the cache never fails
// the read.
func (s *Service) FetchCase(ctx context.Context, actor Actor, id string) (c *Case, err error) {
	ctx, span := tracer.Start(ctx, "cases.FetchCase", trace.WithAttributes(
		attribute.String("pleura.case.id", id),
	))
	defer func() { endSpan(span, err) }()

	c, err = s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	c = s.fillSimilarity(ctx, c)

	s.audit.Record(ctx, audit.CaseViewed, c.ID, actor.Email, "")
	return c, nil
}

func (s *Service) fillSimilarity(ctx context.Context, c *Case) *Case {
	if c.Resolved() || c.Predictions == nil || c.HasSimilarityMatch() {
		return c
	}

	L := s.logger.With("case_id", c.ID)

	pool, err := s.repo.ListByOwner(ctx, c.OwnerID)
	if err != nil {
		s.metrics.similarityFill(fillError)
		L.Warn(ctx, "similarity fill skipped: listing candidates failed", "error", err)
		return c
	}

	candidates := make([]similarity.Candidate, 0, len(pool))
	for _, other := range pool {
		if other.ID == c.ID || other.Resolved() || other.Predictions == nil {
			continue
		}
		candidates = append(candidates, similarity.Candidate{
			ID:          other.ID,
			Predictions: *other.Predictions,
			CreatedAt:   other.CreatedAt,
		})
	}

	match, ok := s.matcher.FindMostSimilar(*c.Predictions, candidates)
	if !ok {
		s.metrics.similarityFill(fillNoMatch)
		return c
	}

	updated, err := s.repo.Update(ctx, c.ID, Patch{
		Similarity: &SimilarityUpdate{CaseID: match.CaseID, Score: match.Score},
	})
	if err != nil {
		s.metrics.similarityFill(fillError)
		L.Warn(ctx, "similarity fill not persisted", "similar_case_id", match.CaseID, "error", err)
		return c
	}

	s.metrics.similarityFill(fillMatched)
	L.Info(ctx, "similar case found", "similar_case_id", match.CaseID, "score", match.Score)
	return updated
}

// ResolveCase records the clinician's final diagnosis. Resolution, notes and
// the resolution time are written in one update.
func (s *Service) ResolveCase(ctx context.Context, actor Actor, id, resolution string, notes *string) (c *Case, err error) {
	ctx, span := tracer.Start(ctx, "cases.ResolveCase", trace.WithAttributes(
		attribute.String("pleura.case.id", id),
		attribute.String("pleura.case.resolution", resolution),
	))
	defer func() { endSpan(span, err) }()

	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	r := Resolution(resolution)
	if !r.Valid() {
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, resolution)
	}

	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	upd := &ResolutionUpdate{Resolution: r, ResolvedAt: s.now().UTC()}
	if notes != nil {
		upd.Notes = *notes
	}
	c, err = s.repo.Update(ctx, id, Patch{Resolution: upd})
	if err != nil {
		return nil, err
	}

	s.metrics.resolved(r)
	s.audit.Record(ctx, audit.CaseResolved, id, actor.Email, "resolution="+resolution)
	s.logger.Info(ctx, "case resolved", "case_id", id, "resolution", resolution)
	return c, nil
}

// ListCases returns the actor's cases, newest first.
func (s *Service) ListCases(ctx context.Context, actor Actor) (out []*Case, err error) {
	ctx, span := tracer.Start(ctx, "cases.ListCases")
	defer func() { endSpan(span, err) }()

	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByOwner(ctx, actor.ID)
}

// ListAllCases returns every case regardless of owner. It is only permitted
// when the repository allows unscoped listing.
func (s *Service) ListAllCases(ctx context.Context) (out []*Case, err error) {
	ctx, span := tracer.Start(ctx, "cases.ListAllCases")
	defer func() { endSpan(span, err) }()

	return s.repo.ListByOwner(ctx, "")
}

// RegisterClinician creates or refreshes the actor's clinician profile.
func (s *Service) RegisterClinician(ctx context.Context, actor Actor, name string) (c *Clinician, err error) {
	ctx, span := tracer.Start(ctx, "cases.RegisterClinician")
	defer func() { endSpan(span, err) }()

	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	c = &Clinician{
		ID:        actor.ID,
		Email:     actor.Email,
		Name:      name,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.UpsertClinician(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GenerateReport drafts a narrative report for the case and stores it.
func (s *Service) GenerateReport(ctx context.Context, actor Actor, id string) (c *Case, err error) {
	ctx, span := tracer.Start(ctx, "cases.GenerateReport", trace.WithAttributes(
		attribute.String("pleura.case.id", id),
	))
	defer func() { endSpan(span, err) }()

	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	if s.drafter == nil {
		return nil, ErrReportingDisabled
	}

	current, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	text, err := s.drafter.Draft(ctx, current)
	s.metrics.report(err)
	if err != nil {
		return nil, fmt.Errorf("draft report for %s: %w", id, err)
	}

	c, err = s.repo.Update(ctx, id, Patch{Report: &text})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.ReportGenerated, id, actor.Email, "")
	return c, nil
}

// loadOwned checks identity, then existence, then ownership.
func (s *Service) loadOwned(ctx context.Context, actor Actor, id string) (*Case, error) {
	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != actor.ID {
		return nil, ErrUnauthorized
	}
	return c, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
