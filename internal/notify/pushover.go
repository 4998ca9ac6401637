package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPushoverAPI is the Pushover messages endpoint used when
// GUERITE_PUSHOVER_API is unset.
const DefaultPushoverAPI = "https://api.pushover.net/1/messages.json"

// notifyTimeout bounds every outbound notification request, independent of
// GUERITE_HOOK_TIMEOUT_SECONDS.
const notifyTimeout = 10 * time.Second

// PushoverTransport posts to the Pushover messages API. A zero-value
// Token or User means Pushover is unconfigured; callers should not
// construct one in that case rather than relying on Send silently no-oping.
type PushoverTransport struct {
	Token  string
	User   string
	APIURL string
	Client *http.Client
}

func (p *PushoverTransport) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: notifyTimeout}
}

func (p *PushoverTransport) apiURL() string {
	if p.APIURL != "" {
		return p.APIURL
	}
	return DefaultPushoverAPI
}

// Send posts title and message to Pushover as a form-encoded request,
// mirroring notifier.py's notify_pushover.
func (p *PushoverTransport) Send(ctx context.Context, title, message string) error {
	form := url.Values{
		"token":   {p.Token},
		"user":    {p.User},
		"title":   {title},
		"message": {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushover returned status %d", resp.StatusCode)
	}
	return nil
}
