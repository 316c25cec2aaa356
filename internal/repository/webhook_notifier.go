package repository

import (
	"context"
	"fmt"
	"time"

	domrepo "PaperTune/internal/domain/repository"
	xhttp "PaperTune/pkg/http"
)

// WebhookNotifier posts notifications to an external chat webhook.
type WebhookNotifier struct {
	client *xhttp.Client
	url    string
	token  string
}

func NewWebhookNotifier(url, token string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		url:    url,
		token:  token,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, subject, text string) error {
	headers := map[string]string{"Content-Type": "application/json"}
	if n.token != "" {
		headers["Authorization"] = "Bearer " + n.token
	}
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     n.url,
		Headers: headers,
		Body: map[string]string{
			"subject": subject,
			"text":    text,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}
	return nil
}

func (n *WebhookNotifier) Close() error { return nil }

// MultiNotifier fans one notification out to several transports.
// Delivery is best-effort per transport; the first error is returned
// after all transports were attempted.
type MultiNotifier struct {
	targets []domrepo.Notifier
}

func NewMultiNotifier(targets ...domrepo.Notifier) *MultiNotifier {
	return &MultiNotifier{targets: targets}
}

func (m *MultiNotifier) Notify(ctx context.Context, subject, text string) error {
	var first error
	for _, t := range m.targets {
		if err := t.Notify(ctx, subject, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiNotifier) Close() error {
	var first error
	for _, t := range m.targets {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ domrepo.Notifier = (*WebhookNotifier)(nil)
	_ domrepo.Notifier = (*MultiNotifier)(nil)
)
