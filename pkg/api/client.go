package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"apimages/pkg/config"
	apperrors "apimages/pkg/errors"
	"apimages/pkg/logger"
	"apimages/pkg/models"
)

const (
	acceptJSON  = "application/json"
	acceptImage = "image/*, */*;q=0.8"
)

// Client issues authenticated GET requests against the device API. It never
// retries: every failure is returned to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a client from the API configuration
func NewClient(cfg *config.APIConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "apimages/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    NormalizeBaseURL(cfg.BaseURL),
		headers: map[string]string{
			"Authorization": "Token " + cfg.Token,
			"User-Agent":    userAgent,
		},
		logger: log,
	}
}

// ListPrivileges fetches GET {base}/self and returns its privileges list.
// Any non-2xx status is an HTTP error.
func (c *Client) ListPrivileges(ctx context.Context) ([]models.Privilege, error) {
	const op = "list sites"
	url := SelfURL(c.baseURL)

	body, status, err := c.get(ctx, op, url, acceptJSON)
	if err != nil {
		return nil, err
	}
	if !apperrors.IsSuccessStatus(status) {
		return nil, apperrors.HTTP(op, url, status, nil)
	}

	privileges, err := parsePrivileges(body)
	if err != nil {
		c.logParseFailure(url, body, err)
		return nil, &apperrors.Error{Kind: apperrors.KindParse, Op: op, URL: url, StatusCode: status, Err: err}
	}
	return privileges, nil
}

// ListDevices fetches GET {base}/sites/{siteID}/devices. Any non-2xx status
// is an HTTP error; a body that is not a list of objects is a parse error.
func (c *Client) ListDevices(ctx context.Context, siteID string) ([]models.Device, error) {
	const op = "list devices"
	url := DevicesURL(c.baseURL, siteID)

	body, status, err := c.get(ctx, op, url, acceptJSON)
	if err != nil {
		return nil, err
	}
	if !apperrors.IsSuccessStatus(status) {
		return nil, apperrors.HTTP(op, url, status, nil)
	}

	devices, err := parseDevices(body)
	if err != nil {
		c.logParseFailure(url, body, err)
		return nil, &apperrors.Error{Kind: apperrors.KindParse, Op: op, URL: url, StatusCode: status, Err: err}
	}
	return devices, nil
}

// FetchImage downloads the raw bytes at an absolute image URL with the same
// credentials. Only status 200 counts as success.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	const op = "fetch image"

	body, status, err := c.get(ctx, op, url, acceptImage)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apperrors.HTTP(op, url, status, nil)
	}
	return body, nil
}

// get performs one request and reads the whole body. Transport failures are
// HTTP errors with status 0.
func (c *Client) get(ctx context.Context, op, url, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, apperrors.HTTP(op, url, 0, fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger.WithError(err), req.Method, url, 0, time.Since(start))
		return nil, 0, apperrors.HTTP(op, url, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, apperrors.HTTP(op, url, 0, fmt.Errorf("failed to read response body: %w", err))
	}

	return body, resp.StatusCode, nil
}

func (c *Client) logParseFailure(url string, body []byte, err error) {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
		"url":          url,
		"error":        err.Error(),
		"body_preview": preview,
	})
}
