package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		CaseIDPrefix:          "CXR",
		IDScanWindow:          200,
		ReviewThreshold:       0.4,
		UrgentThreshold:       0.7,
		SimilarityThreshold:   0.8,
		ClaudeModel:           "claude-sonnet-4-20250514",
		ReportMaxTokens:       1024,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c != validBase() {
		t.Errorf("defaults = %+v, want %+v", c, validBase())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if !c.DevMode() {
		t.Error("defaults should run in dev mode")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://pleura@db/pleura",
		"-jwt-secret", "s3cret",
		"-case-id-prefix", "CT",
		"-id-scan-window", "50",
		"-review-threshold", "0.3",
		"-urgent-threshold", "0.9",
		"-similarity-threshold", "0.85",
		"-claude-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
		"-report-max-tokens", "2048",
		"-slack-webhook-url", "https://hooks.slack.com/services/x",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	want := Config{
		DrainSeconds:          30,
		ShutdownBudgetSeconds: 120,
		APIPort:               9090,
		DatabaseURL:           "postgres://pleura@db/pleura",
		JWTSecret:             "s3cret",
		CaseIDPrefix:          "CT",
		IDScanWindow:          50,
		ReviewThreshold:       0.3,
		UrgentThreshold:       0.9,
		SimilarityThreshold:   0.85,
		ClaudeAPIKey:          "sk-override",
		ClaudeModel:           "claude-opus-4-20250514",
		ReportMaxTokens:       2048,
		SlackWebhookURL:       "https://hooks.slack.com/services/x",
	}
	if c != want {
		t.Errorf("parsed = %+v, want %+v", c, want)
	}
	if c.DevMode() {
		t.Error("database url and jwt secret set; DevMode should be false")
	}
}

func TestDevMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dbURL  string
		secret string
		want   bool
	}{
		{"nothing configured", "", "", true},
		{"database only", "postgres://x", "", false},
		{"secret only", "", "s", false},
		{"both", "postgres://x", "s", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Config{DatabaseURL: tt.dbURL, JWTSecret: tt.secret}
			if got := c.DevMode(); got != tt.want {
				t.Errorf("DevMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(mut func(*Config)) Config {
		c := validBase()
		mut(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1
				c.IDScanWindow, c.ReportMaxTokens = 1, 1
				c.SimilarityThreshold = 0
			}),
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535
				c.IDScanWindow, c.ReportMaxTokens = 10000, 8192
				c.UrgentThreshold = 1
			}),
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Case ids
		{
			name:      "empty prefix",
			cfg:       with(func(c *Config) { c.CaseIDPrefix = "" }),
			wantErr:   true,
			errSubstr: []string{"CASE_ID_PREFIX"},
		},
		{
			name:      "prefix with dash",
			cfg:       with(func(c *Config) { c.CaseIDPrefix = "CXR-A" }),
			wantErr:   true,
			errSubstr: []string{"CASE_ID_PREFIX"},
		},
		{
			name:      "scan window zero",
			cfg:       with(func(c *Config) { c.IDScanWindow = 0 }),
			wantErr:   true,
			errSubstr: []string{"ID_SCAN_WINDOW"},
		},
		// Thresholds
		{
			name:      "review zero",
			cfg:       with(func(c *Config) { c.ReviewThreshold = 0 }),
			wantErr:   true,
			errSubstr: []string{"REVIEW_THRESHOLD"},
		},
		{
			name:      "review equals urgent",
			cfg:       with(func(c *Config) { c.ReviewThreshold, c.UrgentThreshold = 0.7, 0.7 }),
			wantErr:   true,
			errSubstr: []string{"URGENT_THRESHOLD"},
		},
		{
			name:      "urgent above one",
			cfg:       with(func(c *Config) { c.UrgentThreshold = 1.01 }),
			wantErr:   true,
			errSubstr: []string{"URGENT_THRESHOLD"},
		},
		{
			name:      "review NaN",
			cfg:       with(func(c *Config) { c.ReviewThreshold = math.NaN() }),
			wantErr:   true,
			errSubstr: []string{"REVIEW_THRESHOLD"},
		},
		{
			name:      "similarity one",
			cfg:       with(func(c *Config) { c.SimilarityThreshold = 1 }),
			wantErr:   true,
			errSubstr: []string{"SIMILARITY_THRESHOLD"},
		},
		{
			name:      "similarity negative",
			cfg:       with(func(c *Config) { c.SimilarityThreshold = -0.1 }),
			wantErr:   true,
			errSubstr: []string{"SIMILARITY_THRESHOLD"},
		},
		// Report drafting
		{
			name:    "claude key with model",
			cfg:     with(func(c *Config) { c.ClaudeAPIKey = "k" }),
			wantErr: false,
		},
		{
			name:      "claude key without model",
			cfg:       with(func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "k", "" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:      "database without jwt secret",
			cfg:       with(func(c *Config) { c.DatabaseURL = "postgres://db/pleura" }),
			wantErr:   true,
			errSubstr: []string{"JWT_SECRET", "DATABASE_URL"},
		},
		{
			name:    "database with jwt secret",
			cfg:     with(func(c *Config) { c.DatabaseURL, c.JWTSecret = "postgres://db/pleura", "s3cret" }),
			wantErr: false,
		},
		{
			name:    "jwt secret without database",
			cfg:     with(func(c *Config) { c.JWTSecret = "s3cret" }),
			wantErr: false,
		},
		{
			name:    "no claude key, no model",
			cfg:     with(func(c *Config) { c.ClaudeModel = "" }),
			wantErr: false,
		},
		{
			name:      "report tokens above max",
			cfg:       with(func(c *Config) { c.ReportMaxTokens = 8193 }),
			wantErr:   true,
			errSubstr: []string{"REPORT_MAX_TOKENS"},
		},
		// Error accumulation: all fields invalid
		{
			name:    "all fields invalid",
			cfg:     Config{ClaudeAPIKey: "k", SimilarityThreshold: 2},
			wantErr: true,
			errSubstr: []string{
				"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "CASE_ID_PREFIX", "ID_SCAN_WINDOW",
				"REVIEW_THRESHOLD", "SIMILARITY_THRESHOLD", "CLAUDE_MODEL", "REPORT_MAX_TOKENS",
			},
		},
		// Extreme values
		{
			name: "extreme negative values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32
			}),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		review, urgent, sim float64
		prefix, key, model  string
	}{
		{60, 90, 8080, 0.4, 0.7, 0.8, "CXR", "", "claude-sonnet"},
		{1, 2, 1, 0.01, 1, 0, "A", "k", "m"},
		{299, 300, 65535, 0.5, 0.6, 0.99, "CT", "k", ""},
		{0, 0, 0, 0, 0, 0, "", "", ""},
		{-1, -1, -1, -1, -1, -1, "-", "", ""},
		{300, 300, 65535, 0.7, 0.4, 1, "CXR", "k", "m"},
		{150, 100, 8080, 0.4, 0.7, 0.8, "X Y", "", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.Inf(-1), math.Inf(1), math.NaN(), "", "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, 1, 2, 1, "CXR", "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.review, s.urgent, s.sim, s.prefix, s.key, s.model)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, review, urgent, sim float64, prefix, key, model string) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.ReviewThreshold = review
		c.UrgentThreshold = urgent
		c.SimilarityThreshold = sim
		c.CaseIDPrefix = prefix
		c.ClaudeAPIKey = key
		c.ClaudeModel = model
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		thresholdsOK := review > 0 && review < urgent && urgent <= 1
		simOK := sim >= 0 && sim < 1
		prefixOK := prefix != "" && !strings.ContainsAny(prefix, "- \t\n/")
		modelOK := key == "" || model != ""

		allValid := drainOK && budgetOK && portOK && crossOK && thresholdsOK && simOK && prefixOK && modelOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
