package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/aluiziolira/cardgrade/config"
)

// ImageClient downloads raw image bytes with the same identity as the page fetchers.
type ImageClient struct {
	client *resty.Client
}

// NewImageClient builds a resty client with retry and timeout taken from cfg.
func NewImageClient(cfg *config.Config) *ImageClient {
	client := resty.New().
		SetTimeout(cfg.ImageTimeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBackoff).
		SetRetryMaxWaitTime(cfg.RetryBackoffMax).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8").
		SetHeader("Accept-Language", cfg.AcceptLanguage).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &ImageClient{client: client}
}

// Client exposes the underlying resty client, mainly so tests can attach httpmock.
func (c *ImageClient) Client() *resty.Client {
	return c.client
}

// Fetch returns the body of url.
func (c *ImageClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("image url is empty")
	}
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, classifyError(err, 0)
	}
	if resp.IsError() {
		return nil, classifyError(nil, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("image %s returned an empty body", url)
	}
	return body, nil
}
