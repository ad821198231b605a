package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotifierResolution(t *testing.T) {
	cfg := newConfig()
	cfg.WorkspaceLinks = []WorkspaceLink{
		{Name: "docs", WebhookURL: ""},
		{Name: "ops", WebhookURL: "https://hooks.slack.example/T000/B000", Channel: "#alerts"},
	}

	t.Run("Env var wins", func(t *testing.T) {
		n := NewNotifier(func(key string) string {
			if key == "SLACK_WEBHOOK_URL" {
				return "https://hooks.slack.example/env"
			}
			return ""
		}, cfg)
		if n.URL != "https://hooks.slack.example/env" {
			t.Errorf("expected env webhook, got %q", n.URL)
		}
	})

	t.Run("First link with a webhook", func(t *testing.T) {
		n := NewNotifier(func(string) string { return "" }, cfg)
		if n.URL != "https://hooks.slack.example/T000/B000" {
			t.Errorf("expected ops webhook, got %q", n.URL)
		}
		if n.Channel != "#alerts" {
			t.Errorf("expected #alerts channel, got %q", n.Channel)
		}
	})

	t.Run("Disabled without any webhook", func(t *testing.T) {
		n := NewNotifier(func(string) string { return "" }, newConfig())
		if n.Enabled() {
			t.Errorf("expected notifier to be disabled")
		}
		if err := n.Notify("dropped"); err != nil {
			t.Errorf("disabled notifier must drop silently, got %v", err)
		}
	})
}

func TestNotifyPayload(t *testing.T) {
	var payload slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("payload is not valid JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(func(key string) string {
		if key == "SLACK_WEBHOOK_URL" {
			return srv.URL
		}
		return ""
	}, nil)

	n.NotifyError("redditmon: failed to persist bot data", errors.New("read-only file system"))

	if payload.Text != "redditmon: failed to persist bot data" {
		t.Errorf("unexpected text %q", payload.Text)
	}
	if payload.Name != "redditmon" {
		t.Errorf("unexpected username %q", payload.Name)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0].Text != "read-only file system" {
		t.Errorf("unexpected attachments %+v", payload.Attachments)
	}
	if payload.Attachments[0].Color != "danger" {
		t.Errorf("unexpected attachment color %q", payload.Attachments[0].Color)
	}
}

func TestNotifyReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(func(key string) string {
		if key == "SLACK_WEBHOOK_URL" {
			return srv.URL
		}
		return ""
	}, nil)

	if err := n.Notify("boom"); err == nil {
		t.Errorf("expected an error on non-200 response")
	}
}
