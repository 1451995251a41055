package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

func TestFromSDKResponse_JoinsTextBlocks(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Model: anthropic.Model("claude-test"),
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Impression: no acute process."},
			{Type: "tool_use", ID: "tu-1", Name: "ignored"},
			{Type: "text", Text: "Recommendation: routine follow-up."},
		},
		StopReason: anthropic.StopReasonEndTurn,
		Usage:      anthropic.Usage{InputTokens: 100, OutputTokens: 50},
	}

	got := fromSDKResponse(msg)

	want := "Impression: no acute process.\n\nRecommendation: routine follow-up."
	if got.Text != want {
		t.Errorf("text = %q, want %q", got.Text, want)
	}
	if got.StopReason != "end_turn" {
		t.Errorf("stop reason = %q, want end_turn", got.StopReason)
	}
	if got.InputTokens != 100 || got.OutputTokens != 50 {
		t.Errorf("usage = %d/%d, want 100/50", got.InputTokens, got.OutputTokens)
	}
	if got.Model != "claude-test" {
		t.Errorf("model = %q, want claude-test", got.Model)
	}
}

func TestFromSDKResponse_Empty(t *testing.T) {
	t.Parallel()

	got := fromSDKResponse(&anthropic.Message{StopReason: anthropic.StopReason("max_tokens")})
	if got.Text != "" {
		t.Errorf("text = %q, want empty", got.Text)
	}
	if got.StopReason != "max_tokens" {
		t.Errorf("stop reason = %q, want max_tokens", got.StopReason)
	}
}

func TestComplete_SendsRequest(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Draft report."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c := New("test-key", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	out, err := c.Complete(context.Background(), Request{System: "be brief", Prompt: "hello", MaxTokens: 256})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Text != "Draft report." {
		t.Errorf("text = %q, want %q", out.Text, "Draft report.")
	}

	if got["model"] != "claude-test" {
		t.Errorf("model = %v, want claude-test", got["model"])
	}
	if got["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v, want 256", got["max_tokens"])
	}
	if _, ok := got["system"]; !ok {
		t.Error("expected system prompt in request")
	}
}

func TestComplete_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	c := New("k", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if c.Model() != DefaultModel {
		t.Errorf("model = %q, want default", c.Model())
	}
	if _, err := c.Complete(context.Background(), Request{Prompt: "x", MaxTokens: 10}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestComplete_ValidatesRequest(t *testing.T) {
	t.Parallel()

	c := New("k", "m")
	if _, err := c.Complete(context.Background(), Request{Prompt: "  ", MaxTokens: 10}); err == nil {
		t.Error("expected error for empty prompt")
	}
	if _, err := c.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Error("expected error for zero max tokens")
	}
}
