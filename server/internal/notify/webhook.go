package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/table1837/eightysix/pkg/types"
)

// deliver sends ev to all configured targets.
// Errors are logged but do not affect the caller.
func (n *Notifier) deliver(ctx context.Context, ev Event) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, ev)
		case "teams":
			err = n.sendTeams(ctx, url, ev)
		case "http":
			err = n.sendHTTP(ctx, url, ev)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"scope", ev.Scope,
				"item_key", ev.Record.ItemKey,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"scope", ev.Scope,
				"event", ev.Name(),
			)
		}
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, ev Event) error {
	body, _ := json.Marshal(map[string]string{"text": summary(ev)})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, ev Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": statusColor(ev.Record.Status),
		"summary":    ev.Record.ItemKey,
		"title":      fmt.Sprintf("86 list (%s): %s", ev.Scope, ev.Record.ItemKey),
		"text":       summary(ev),
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

// sendHTTP posts the same envelope realtime clients receive.
func (n *Notifier) sendHTTP(ctx context.Context, url string, ev Event) error {
	body, err := types.NewRecordMessage(ev.Scope, ev.Record)
	if err != nil {
		return err
	}
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// summary renders ev as one human-readable line.
func summary(ev Event) string {
	verb := "is back on"
	if ev.Record.Status == types.StatusUnavailable {
		verb = "was 86'd from"
	}
	s := fmt.Sprintf("*%s* %s the %s menu (by %s)", ev.Record.ItemKey, verb, ev.Scope, ev.Record.ActorID)
	if ev.Record.Reason != "" {
		s += ": " + ev.Record.Reason
	}
	return s
}

func statusColor(s types.Status) string {
	if s == types.StatusUnavailable {
		return "FF4F6A"
	}
	return "2ECC71"
}
