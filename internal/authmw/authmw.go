// Package authmw resolves the calling clinician from request credentials.
//
// The middleware never rejects a request: a missing or invalid credential
// simply leaves no identity on the context, and handlers decide what an
// anonymous caller may do.
package authmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linnemanlabs/go-core/log"
)

// Dev-mode headers trusted only when no signing secret is configured.
const (
	HeaderClinicianID    = "X-Clinician-Id"
	HeaderClinicianEmail = "X-Clinician-Email"
)

// Identity is the resolved caller.
type Identity struct {
	Subject string
	Email   string
	Source  string // "jwt" or "header"
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached by the middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Subject != ""
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Resolver verifies HS256 bearer tokens. With an empty secret it trusts the
// dev headers instead.
type Resolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewResolver returns a Resolver for the given signing secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{
		secret: []byte(strings.TrimSpace(secret)),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// DevMode reports whether identity comes from unauthenticated headers.
func (r *Resolver) DevMode() bool { return len(r.secret) == 0 }

// Resolve extracts the caller's identity. Any failure is reported as an
// error and should be treated as "no identity".
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	if r.DevMode() {
		sub := strings.TrimSpace(req.Header.Get(HeaderClinicianID))
		if sub == "" {
			return Identity{}, errors.New("no clinician header")
		}
		return Identity{
			Subject: sub,
			Email:   strings.TrimSpace(req.Header.Get(HeaderClinicianEmail)),
			Source:  "header",
		}, nil
	}

	token, ok := bearerToken(req.Header.Get("Authorization"))
	if !ok {
		return Identity{}, errors.New("missing or malformed authorization header")
	}

	c := &claims{}
	parsed, err := r.parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("subject claim required")
	}
	return Identity{Subject: c.Subject, Email: c.Email, Source: "jwt"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware attaches the resolved identity to the request context. Requests
// without a usable credential pass through anonymously.
func Middleware(r *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id, err := r.Resolve(req)
			if err != nil {
				if req.Header.Get("Authorization") != "" {
					log.FromContext(req.Context()).Info(req.Context(), "ignoring unusable credential", "reason", err.Error())
				}
				next.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
		})
	}
}
