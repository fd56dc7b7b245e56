package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qhosting/provisioning-service/internal/config"
)

// ErrMissingToken is a startup-time configuration error, never a per-job one
var ErrMissingToken = errors.New("panel API token not configured")

// ResultStatus classifies the control plane's answer so the worker's
// handling is mechanical
type ResultStatus string

const (
	ResultSuccess       ResultStatus = "success"
	ResultAlreadyExists ResultStatus = "already_exists"
	ResultRejected      ResultStatus = "rejected"
)

// AccountRequest carries the fields of one account-creation call
type AccountRequest struct {
	Username     string
	Domain       string
	PanelPackage string
	ContactEmail string
	Endpoint     string
}

// AccountResult is the typed outcome of a structurally valid panel
// response. Transport-level failures are returned as errors instead.
type AccountResult struct {
	Status ResultStatus
	Reason string
}

// panelResponse is the WHM json-api envelope; success is signalled by
// metadata.result == 1, failure carries a free-text reason
type panelResponse struct {
	Metadata struct {
		Result int    `json:"result"`
		Reason string `json:"reason"`
	} `json:"metadata"`
}

// PanelClient calls the account-creation endpoint of a node's WHM-style
// control plane
type PanelClient struct {
	token        string
	port         int
	contactEmail string
	httpClient   *http.Client
}

// NewPanelClient builds the client. A missing token fails here, at wiring
// time, so a misconfigured deployment cannot burn through job retries.
func NewPanelClient(cfg config.PanelConfig) (*PanelClient, error) {
	if cfg.APIToken == "" {
		return nil, ErrMissingToken
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Node panels commonly serve endpoint-issued certificates that no
	// public CA chains to. Trusting them is opt-in and scoped to this
	// client's transport; the rest of the process keeps full verification.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.AllowSelfSigned {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		log.Printf("[PanelClient] TLS verification disabled for node panel endpoints")
	}

	return &PanelClient{
		token:        cfg.APIToken,
		port:         cfg.Port,
		contactEmail: cfg.ContactEmail,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// CreateAccount performs one createacct call against the node named in the
// request. A returned error is always transport-level (retryable); every
// structurally valid panel answer comes back as an AccountResult.
func (c *PanelClient) CreateAccount(ctx context.Context, req AccountRequest) (*AccountResult, error) {
	contactEmail := req.ContactEmail
	if contactEmail == "" {
		contactEmail = c.contactEmail
	}

	params := url.Values{}
	params.Set("username", req.Username)
	params.Set("domain", req.Domain)
	params.Set("plan", req.PanelPackage)
	params.Set("contactemail", contactEmail)

	endpoint := fmt.Sprintf("https://%s:%d/json-api/createacct?%s", req.Endpoint, c.port, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "whm root:"+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("panel returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed panelResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if parsed.Metadata.Result == 1 {
		log.Printf("[PanelClient] Account created for %s on %s", req.Domain, req.Endpoint)
		return &AccountResult{Status: ResultSuccess}, nil
	}

	reason := parsed.Metadata.Reason
	if reason == "" {
		reason = fmt.Sprintf("panel rejected request with status %d and no reason", resp.StatusCode)
	}

	if isAlreadyExists(reason) {
		return &AccountResult{Status: ResultAlreadyExists, Reason: reason}, nil
	}
	return &AccountResult{Status: ResultRejected, Reason: reason}, nil
}

// isAlreadyExists matches the panel's free-text rejection for an account
// or domain that was already created by a prior delivery. The panel exposes
// no structured error code, so this stays a heuristic; callers log the raw
// reason whenever it fires.
func isAlreadyExists(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "already exists")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
