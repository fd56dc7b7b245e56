package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/qhosting/provisioning-service/internal/models"
)

// HubClient pushes terminal provisioning outcomes to the central hub so
// the master control panel sees them without polling. Notifications are
// best-effort; a hub outage never changes a job's outcome.
type HubClient struct {
	baseURL      string
	sharedSecret string
	httpClient   *http.Client
}

// NewHubClient creates a hub notifier. An empty baseURL disables it.
func NewHubClient(baseURL, sharedSecret string) *HubClient {
	return &HubClient{
		baseURL:      baseURL,
		sharedSecret: sharedSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether a hub endpoint is configured
func (c *HubClient) Enabled() bool {
	return c.baseURL != ""
}

// NotifyServiceStatus sends a service status callback to the hub
func (c *HubClient) NotifyServiceStatus(ctx context.Context, callback *models.HubCallback) error {
	if !c.Enabled() {
		return nil
	}

	url := fmt.Sprintf("%s/api/satellite/services/callback", c.baseURL)

	body, err := json.Marshal(callback)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Satellite-Secret", c.sharedSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("hub returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifyActive reports a successfully provisioned service
func (c *HubClient) NotifyActive(ctx context.Context, svc *models.ServiceRecord) error {
	return c.NotifyServiceStatus(ctx, &models.HubCallback{
		ServiceID: svc.ID,
		Domain:    svc.Domain,
		Status:    models.StatusActive,
		NodeID:    svc.NodeID,
	})
}

// NotifyFailed reports a terminally failed provisioning attempt
func (c *HubClient) NotifyFailed(ctx context.Context, svc *models.ServiceRecord, reason string) error {
	return c.NotifyServiceStatus(ctx, &models.HubCallback{
		ServiceID:     svc.ID,
		Domain:        svc.Domain,
		Status:        models.StatusFailed,
		NodeID:        svc.NodeID,
		FailureReason: &reason,
	})
}
