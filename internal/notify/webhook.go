// Package notify delivers the completion notification of an upload batch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mediaingest/internal/common"
	"github.com/dmitrijs2005/mediaingest/internal/logging"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/dmitrijs2005/mediaingest/internal/netx"
)

// Issuer is the iss claim of webhook tokens.
const Issuer = "mediaingest"

const tokenTTL = 5 * time.Minute

// Webhook posts notifications to a configured URL. An empty URL disables
// delivery.
type Webhook struct {
	url    string
	secret []byte
	client *http.Client
	logger logging.Logger
}

func NewWebhook(url, secret string, timeout time.Duration, logger logging.Logger) *Webhook {
	return &Webhook{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify sends n once. It is never retried.
func (w *Webhook) Notify(ctx context.Context, n models.Notification) error {
	if w.url == "" {
		w.logger.Debug(ctx, "webhook disabled, notification dropped", "destination", n.Destination)
		return nil
	}

	token, err := GenerateToken(n.Email, w.secret, tokenTTL)
	if err != nil {
		return fmt.Errorf("sign webhook token: %w", err)
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	err = netx.PostJSON(ctx, w.client, w.url, n, h)
	var se *netx.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %v", common.ErrWebhookRejected, se)
	}
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	return nil
}
