package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds pleura-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	JWTSecret             string
	CaseIDPrefix          string
	IDScanWindow          int
	ReviewThreshold       float64
	UrgentThreshold       float64
	SimilarityThreshold   float64
	ClaudeAPIKey          string
	ClaudeModel           string
	ReportMaxTokens       int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HS256 secret for clinician bearer tokens (required with database-url; empty = trust X-Clinician-* headers)")
	fs.StringVar(&c.CaseIDPrefix, "case-id-prefix", "CXR", "prefix of allocated case ids (PREFIX-NNN)")
	fs.IntVar(&c.IDScanWindow, "id-scan-window", 200, "recent case ids read to seed the id counter (1..10000)")
	fs.Float64Var(&c.ReviewThreshold, "review-threshold", 0.4, "probability at which a condition is flagged for review")
	fs.Float64Var(&c.UrgentThreshold, "urgent-threshold", 0.7, "probability at which a condition is flagged urgent")
	fs.Float64Var(&c.SimilarityThreshold, "similarity-threshold", 0.8, "score a prior case must exceed to be linked as similar [0,1)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (empty = report drafting disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model used for report drafting")
	fs.IntVar(&c.ReportMaxTokens, "report-max-tokens", 1024, "max tokens for a drafted report (1..8192)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for resolution notifications")
}

// DevMode reports whether the service runs without a durable store or token
// verification. Unscoped listing is only enabled in this mode.
func (c *Config) DevMode() bool {
	return c.DatabaseURL == "" && c.JWTSecret == ""
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.CaseIDPrefix == "" || strings.ContainsAny(c.CaseIDPrefix, "- \t\n/") {
		errs = append(errs, fmt.Errorf("invalid CASE_ID_PREFIX %q (must be non-empty, no dashes, slashes or spaces)", c.CaseIDPrefix))
	}
	if c.IDScanWindow <= 0 || c.IDScanWindow > 10000 {
		errs = append(errs, fmt.Errorf("invalid ID_SCAN_WINDOW %d (must be 1..10000)", c.IDScanWindow))
	}

	// Triage thresholds: 0 < review < urgent <= 1
	if !(c.ReviewThreshold > 0) || !(c.ReviewThreshold < c.UrgentThreshold) || !(c.UrgentThreshold <= 1) {
		errs = append(errs, fmt.Errorf("invalid REVIEW_THRESHOLD %v / URGENT_THRESHOLD %v (need 0 < review < urgent <= 1)", c.ReviewThreshold, c.UrgentThreshold))
	}
	if !(c.SimilarityThreshold >= 0) || !(c.SimilarityThreshold < 1) {
		errs = append(errs, fmt.Errorf("invalid SIMILARITY_THRESHOLD %v (must be in [0,1))", c.SimilarityThreshold))
	}

	// Header identity is only trusted without a durable store
	if c.DatabaseURL != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when DATABASE_URL is set"))
	}

	// Claude model is required when report drafting is enabled
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.ReportMaxTokens <= 0 || c.ReportMaxTokens > 8192 {
		errs = append(errs, fmt.Errorf("invalid REPORT_MAX_TOKENS %d (must be 1..8192)", c.ReportMaxTokens))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
