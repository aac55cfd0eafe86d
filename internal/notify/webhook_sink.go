package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	colorCommitted = 0x2ecc71
	colorReverted  = 0xe67e22
)

// WebhookSink posts a chat-style embed for every event.
type WebhookSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewWebhookSink(url string, timeout time.Duration, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}

	return &WebhookSink{url: url, client: client, timeout: timeout}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func buildPayload(ev Event) webhookPayload {
	title := "Transaction committed"
	color := colorCommitted
	if ev.Action == ActionReverted {
		title = "Transaction reverted"
		color = colorReverted
	}

	reason := ev.Reason
	if reason == "" {
		reason = "-"
	}

	return webhookPayload{Embeds: []embed{{
		Title: title,
		Color: color,
		Fields: []embedField{
			{Name: "ID", Value: ev.TransactionID.String(), Inline: true},
			{Name: "Kind", Value: string(ev.Kind), Inline: true},
			{Name: "Amount", Value: strconv.FormatInt(ev.Amount, 10), Inline: true},
			{Name: "User", Value: ev.User, Inline: true},
			{Name: "Bot", Value: ev.Bot, Inline: true},
			{Name: "Balance", Value: strconv.FormatInt(ev.ResultingBalance, 10), Inline: true},
			{Name: "Reason", Value: reason},
		},
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
	}}}
}

func (s *WebhookSink) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(buildPayload(ev))
	if err != nil {
		return fmt.Errorf("encode embed: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}

	return nil
}
