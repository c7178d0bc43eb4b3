package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/ingestor/internal/core/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// Payload is the JSON body posted for each window.
type Payload struct {
	SourceID domain.SourceID `json:"source_id"`
	Window   domain.Cursor   `json:"window"`
}

// HTTPConnector posts every window to a downstream fetch service.
type HTTPConnector struct {
	client *resty.Client
	url    string
}

// NewHTTPConnector creates a connector posting to cfg.URL.
func NewHTTPConnector(cfg Config) (*HTTPConnector, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http connector requires a url")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if len(cfg.Headers) > 0 {
		client.SetHeaders(cfg.Headers)
	}

	return &HTTPConnector{client: client, url: cfg.URL}, nil
}

// Fetch posts the window and treats any non-2xx answer as a failure. Client
// errors other than 408 and 429 are permanent.
func (c *HTTPConnector) Fetch(ctx context.Context, sourceID domain.SourceID, cur domain.Cursor) error {
	rsp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Scan-Tag", cur.ScanType.Tag()).
		SetBody(Payload{SourceID: sourceID, Window: cur}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post window: %w", err)
	}
	if rsp.IsSuccess() {
		return nil
	}

	code := rsp.StatusCode()
	err = fmt.Errorf("post window: unexpected status %d: %s", code, truncate(rsp.String(), 256))
	if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
