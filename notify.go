package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/nlopes/slack"
)

// slackMessage is the incoming-webhook payload.
type slackMessage struct {
	Text        string             `json:"text"`
	Name        string             `json:"username,omitempty"`
	IconEmoji   string             `json:"icon_emoji,omitempty"`
	Channel     string             `json:"channel,omitempty"`
	Attachments []slack.Attachment `json:"attachments,omitempty"`
}

// Notifier posts operator alerts to a Slack incoming webhook. Persistence
// failures must reach the operator somehow; when no webhook is configured the
// notifier is disabled and callers fall back to logs alone.
type Notifier struct {
	URL     string
	Channel string
	client  *http.Client
}

// NewNotifier resolves the webhook from SLACK_WEBHOOK_URL, falling back to
// the first workspace link in the config that carries one.
func NewNotifier(getenv func(string) string, cfg *Config) *Notifier {
	url := getenv("SLACK_WEBHOOK_URL")
	channel := ""
	if url == "" && cfg != nil {
		for _, link := range cfg.WorkspaceLinks {
			if link.WebhookURL != "" {
				url = link.WebhookURL
				channel = link.Channel
				break
			}
		}
	}
	return &Notifier{
		URL:     url,
		Channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n != nil && n.URL != "" }

// Notify posts a message to the webhook. Disabled notifiers drop silently.
func (n *Notifier) Notify(text string, attachments ...slack.Attachment) error {
	if !n.Enabled() {
		return nil
	}
	b, err := json.Marshal(slackMessage{
		Text:        text,
		Name:        "redditmon",
		IconEmoji:   ":floppy_disk:",
		Channel:     n.Channel,
		Attachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %v", err)
	}
	req, err := http.NewRequest("POST", n.URL, bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// NotifyError reports a failure to the operator. Notification errors are
// logged and swallowed so they never mask the failure being reported.
func (n *Notifier) NotifyError(context string, err error) {
	if !n.Enabled() {
		return
	}
	att := slack.Attachment{Color: "danger", Text: err.Error()}
	if nerr := n.Notify(context, att); nerr != nil {
		log.Printf("Failed to send Slack notification: %v", nerr)
	}
}
