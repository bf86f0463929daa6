package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shrinkray/compression-backend/pkg/config"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Client talks to the staging object-storage service over HTTP
type Client struct {
	cfg        config.StagingConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a staging storage client. It refuses to start without
// credentials so a misconfigured deployment fails at startup instead of
// on the first OCR request.
func NewClient(cfg config.StagingConfig, log *logger.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.NotConfigured("staging storage")
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.WithComponent("staging-client"),
	}, nil
}

// PutObject uploads data under key
func (c *Client) PutObject(ctx context.Context, key string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return errors.StagingFailed("put", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.StagingFailed("put", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.StagingFailed("put", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	c.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("object staged")
	return nil
}

// SignedReadURL requests a time-limited read URL for key
func (c *Client) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(map[string]any{"ttl_seconds": int(ttl.Seconds())})
	if err != nil {
		return "", errors.StagingFailed("sign", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(key)+"/sign", bytes.NewReader(payload))
	if err != nil {
		return "", errors.StagingFailed("sign", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.StagingFailed("sign", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.StagingFailed("sign", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var signed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", errors.StagingFailed("sign", fmt.Errorf("parse response: %w", err))
	}
	if signed.URL == "" {
		return "", errors.StagingFailed("sign", fmt.Errorf("empty signed url"))
	}
	return signed.URL, nil
}

// DeleteObject removes key. Callers treat failures as non-fatal.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return errors.StagingFailed("delete", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.StagingFailed("delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.StagingFailed("delete", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, key)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("X-Access-Key", c.cfg.AccessKey)
	req.Header.Set("X-Secret-Key", c.cfg.SecretKey)
}
