package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Feed is the document a channel serves at its feed URL.
type Feed struct {
	Bookings []ExternalBooking `json:"bookings"`
}

// RejectionNotice tells a channel that one of its bookings was refused.
type RejectionNotice struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Note        string `json:"note,omitempty"`
}

// Remote talks to channel endpoints.
type Remote interface {
	FetchFeed(ctx context.Context, url string) (*Feed, error)
	NotifyRejection(ctx context.Context, url string, notice RejectionNotice) error
}

// HTTPRemote is the resty-backed Remote.
type HTTPRemote struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPRemote(timeout time.Duration, retries int, logger *zap.Logger) *HTTPRemote {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPRemote{client: client, logger: logger}
}

func (r *HTTPRemote) FetchFeed(ctx context.Context, url string) (*Feed, error) {
	var feed Feed
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&feed).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch channel feed failed: %w", err)
	}
	if resp.IsError() {
		r.logger.Warn("channel feed returned error",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode()))
		return nil, fmt.Errorf("fetch channel feed: status %d: %w", resp.StatusCode(), ErrFeedUnavailable)
	}
	return &feed, nil
}

func (r *HTTPRemote) NotifyRejection(ctx context.Context, url string, notice RejectionNotice) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(notice).
		Post(url)
	if err != nil {
		return fmt.Errorf("notify channel failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify channel: status %d", resp.StatusCode())
	}
	return nil
}
