// Package slack posts case resolution notices to Slack via incoming webhooks.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	goslack "github.com/slack-go/slack"

	"github.com/linnemanlabs/pleura/internal/audit"
)

const (
	maxDetailLen = 3000
	maxHeaderLen = 150
	httpTimeout  = 10 * time.Second
)

// Notifier is an audit.Writer that forwards CASE_RESOLVED events to a Slack
// webhook. Other events are ignored.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

var _ audit.Writer = (*Notifier)(nil)

// New creates a new Slack notifier. If webhookURL is empty, Write is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Name implements audit.Writer.
func (n *Notifier) Name() string { return "slack" }

// Write posts ev to the configured webhook when it is a resolution.
func (n *Notifier) Write(ctx context.Context, ev *audit.Event) error {
	if n.webhookURL == "" || ev.Name != audit.CaseResolved {
		return nil
	}

	if err := goslack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, buildMessage(ev)); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}

	n.logger.Info(ctx, "slack notification sent", "case_id", ev.CaseID, "event_id", ev.ID)
	return nil
}

func buildMessage(ev *audit.Event) *goslack.WebhookMessage {
	return &goslack.WebhookMessage{
		Text: fmt.Sprintf("Case %s resolved", ev.CaseID),
		Blocks: &goslack.Blocks{BlockSet: []goslack.Block{
			headerBlock(ev),
			goslack.NewDividerBlock(),
			fieldsBlock(ev),
			goslack.NewDividerBlock(),
			contextBlock(ev),
		}},
	}
}

func headerBlock(ev *audit.Event) goslack.Block {
	r := resolutionOf(ev.Detail)
	text := fmt.Sprintf("%s Case Resolved: %s", resolutionEmoji(r), ev.CaseID)

	return goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, truncate(text, maxHeaderLen), false, false),
	)
}

func fieldsBlock(ev *audit.Event) goslack.Block {
	r := resolutionOf(ev.Detail)
	if r == "" {
		r = "unknown"
	}
	clinician := ev.ActorEmail
	if clinician == "" {
		clinician = "_unknown_"
	}

	fields := []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Case:* %s", truncate(ev.CaseID, maxDetailLen)), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Resolution:* %s", truncate(r, maxDetailLen)), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Clinician:* %s", truncate(clinician, maxDetailLen)), false, false),
	}

	return goslack.NewSectionBlock(nil, fields, nil)
}

func contextBlock(ev *audit.Event) goslack.Block {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}

	text := fmt.Sprintf("pleura • case %s • %s", ev.CaseID, ts.UTC().Format("2006-01-02 15:04 UTC"))
	return goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, truncate(text, maxDetailLen), false, false),
	)
}

// resolutionOf extracts the value of a "resolution=..." detail.
func resolutionOf(detail string) string {
	r, _ := strings.CutPrefix(detail, "resolution=")
	return r
}

func resolutionEmoji(resolution string) string {
	switch resolution {
	case "pneumothorax":
		return "\U0001f534" // red circle
	case "pneumonia", "nodule":
		return "\U0001f7e1" // yellow circle
	case "no_finding":
		return "\U0001f7e2" // green circle
	default:
		return "\u26aa" // white circle
	}
}

// truncate caps s at limit bytes, cutting on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
