package flair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// Defaults to http.DefaultClient
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendReport(ctx context.Context, itemID, permalink, reason string) error {
	msg := "⚠️ Trade Flair Report ⚠️\n"
	msg += fmt.Sprintf("Report `%s` on `%s`\n", reason, itemID)
	if permalink != "" {
		msg += fmt.Sprintf("<%s|permalink>\n", permalink)
	}
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendCreditAlert(ctx context.Context, user string, count int) error {
	msg := "⚠️ Trade Flair Volume ⚠️\n"
	msg += fmt.Sprintf("`%s` was credited %d trades today\n", user, count)
	return n.sendSlackMsg(ctx, msg)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
