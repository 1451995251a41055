package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

const modulePrefix = "github.com/linnemanlabs/pleura/internal/"

// QueryObserver receives the duration of every query. route is the chi
// route pattern of the request that issued it, or "background".
type QueryObserver func(route, outcome string, dur time.Duration)

type queryStateKey struct{}

// queryState carries what TraceQueryEnd needs from TraceQueryStart.
type queryState struct {
	sql    string
	args   []any
	start  time.Time
	caller string
}

// queryTracer runs an inner tracer (otelpgx) and adds one log line and one
// observation per query. Bind arguments carry patient records, so only their
// count is logged unless logArgs is set.
type queryTracer struct {
	inner   pgx.QueryTracer
	opts    Options
	callers func() string
}

func newQueryTracer(inner pgx.QueryTracer, opts Options) *queryTracer {
	return &queryTracer{inner: inner, opts: opts, callers: storeCaller}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	st := &queryState{sql: data.SQL, args: data.Args, start: time.Now(), caller: t.callers()}

	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}
	if st.caller != "" {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("db.caller", st.caller))
		}
	}
	return context.WithValue(ctx, queryStateKey{}, st)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	st, ok := ctx.Value(queryStateKey{}).(*queryState)
	if !ok {
		return
	}
	dur := time.Since(st.start)

	outcome := "ok"
	if data.Err != nil {
		outcome = "error"
	}
	if t.opts.Observer != nil {
		t.opts.Observer(routeOf(ctx), outcome, dur)
	}

	if data.Err == nil && dur < t.opts.MinLogDuration {
		return
	}
	fields := queryFields(st, data, t.opts.LogArgs, dur)
	L := log.FromContext(ctx)
	if data.Err != nil {
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

func queryFields(st *queryState, data pgx.TraceQueryEndData, logArgs bool, dur time.Duration) []any {
	fields := []any{
		"db.statement", st.sql,
		"db.duration", dur.Seconds(),
	}
	if logArgs {
		fields = append(fields, "db.args", st.args)
	} else {
		fields = append(fields, "db.arg_count", len(st.args))
	}
	if words := strings.Fields(data.CommandTag.String()); len(words) > 0 {
		fields = append(fields,
			"db.operation.name", strings.ToUpper(words[0]),
			"db.rows", data.CommandTag.RowsAffected(),
		)
	}
	if st.caller != "" {
		fields = append(fields, "db.caller", st.caller)
	}
	var pgErr *pgconn.PgError
	if errors.As(data.Err, &pgErr) {
		fields = append(fields, "db.error_code", pgErr.Code, "db.error_constraint", pgErr.ConstraintName)
	}
	return fields
}

func routeOf(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return rc.RouteMethod + " " + p
		}
	}
	return "background"
}

// storeCaller names the first frame of this module outside the postgres
// package, normally a pgstore method.
func storeCaller() string {
	pcs := make([]uintptr, 24)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		fr, more := frames.Next()
		if fn, ok := strings.CutPrefix(fr.Function, modulePrefix); ok && !strings.HasPrefix(fn, "postgres.") {
			return trimPackagePath(fn)
		}
		if !more {
			return ""
		}
	}
}

// trimPackagePath turns "cases/pgstore.(*Store).Get" into "pgstore.(*Store).Get".
func trimPackagePath(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}
	return fn
}
